package api_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rovits/poi-sync-service/internal/api"
	"github.com/rovits/poi-sync-service/internal/api/common"
	"github.com/rovits/poi-sync-service/internal/cache"
	"github.com/rovits/poi-sync-service/internal/places"
	"github.com/rovits/poi-sync-service/internal/ratelimit"
	"github.com/rovits/poi-sync-service/internal/resolver"
	"github.com/rovits/poi-sync-service/internal/sources/google"
	"github.com/rovits/poi-sync-service/internal/status"
	"github.com/rovits/poi-sync-service/internal/store/inmemory"
	pkgsync "github.com/rovits/poi-sync-service/internal/sync"
	"github.com/rovits/poi-sync-service/internal/sync/coordinator"
)

// fakePlacesAPI serves a small fixed area and counts calls per path
type fakePlacesAPI struct {
	mu    sync.Mutex
	calls map[string]int
}

func (f *fakePlacesAPI) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func (f *fakePlacesAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.calls[r.URL.Path]++
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/v1/places:searchNearby":
		fmt.Fprint(w, `{"places":[
			{"id":"p1","displayName":{"text":"Cafe One"},"location":{"latitude":41.0082,"longitude":28.9784}},
			{"id":"p2","displayName":{"text":"Cafe Two"},"location":{"latitude":41.0090,"longitude":28.9790}}
		]}`)
	case r.URL.Path == "/v1/places:searchText":
		fmt.Fprint(w, `{"places":[{"id":"t1","displayName":{"text":"Pizza Place"},"formattedAddress":"Main St 1"}]}`)
	case strings.HasPrefix(r.URL.Path, "/v1/places/p"):
		id := strings.TrimPrefix(r.URL.Path, "/v1/places/")
		fmt.Fprintf(w, `{"id":%q,"displayName":{"text":"Place %s"},"formattedAddress":"Street %s",
			"location":{"latitude":41.0082,"longitude":28.9784}}`, id, id, id)
	default:
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"code":404,"message":"Place not found","status":"NOT_FOUND"}}`)
	}
}

type apiResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *common.ErrorDetail `json:"error"`
}

var _ = Describe("POI Sync API", func() {
	var (
		upstream *fakePlacesAPI
		fake     *httptest.Server
		server   *httptest.Server
		res      *resolver.Service
		coord    *coordinator.Coordinator
	)

	request := func(method, path string) (*http.Response, apiResponse) {
		req, err := http.NewRequest(method, server.URL+path, nil)
		Expect(err).NotTo(HaveOccurred())
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		defer func() {
			_ = resp.Body.Close()
		}()

		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		var env apiResponse
		Expect(json.Unmarshal(body, &env)).To(Succeed())
		return resp, env
	}

	BeforeEach(func() {
		upstream = &fakePlacesAPI{calls: map[string]int{}}
		fake = httptest.NewServer(upstream)

		src := google.New("test-key", google.WithEndpoint(fake.URL), google.WithMaxRetries(0))
		st, err := inmemory.New()
		Expect(err).NotTo(HaveOccurred())

		res = resolver.New(cache.NewMemoryCache(), st, src)
		registry := status.NewRegistry()
		coord = coordinator.New(pkgsync.NewPipeline(src, st), registry)

		handler := api.NewServer(res, coord, registry,
			api.WithMiddlewares(
				middleware.RequestID,
				api.CorrelationIDMiddleware,
				ratelimit.Middleware(ratelimit.NewLimiter(ratelimit.NewMemoryCounterStore()), ratelimit.MiddlewareConfig{
					AnonymousLimit:     1000,
					AuthenticatedLimit: 1000,
					Period:             time.Minute,
				}),
			),
			api.WithReadinessChecks(st),
		)
		server = httptest.NewServer(handler)
	})

	AfterEach(func() {
		coord.Wait()
		res.Wait()
		server.Close()
		fake.Close()
	})

	Describe("nearby search", func() {
		It("answers repeated queries from the cache", func() {
			resp, env := request(http.MethodGet, "/api/places/nearby?lat=41.0082&lng=28.9784&radius=1000&type=cafe")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get(api.CorrelationIDHeader)).NotTo(BeEmpty())

			var first places.SearchNearbyResponse
			Expect(json.Unmarshal(env.Data, &first)).To(Succeed())
			Expect(first.Places).To(HaveLen(2))

			resp, _ = request(http.MethodGet, "/api/places/nearby?lat=41.0082&lng=28.9784&radius=1000&type=cafe")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(upstream.count("/v1/places:searchNearby")).To(Equal(1))
		})

		It("answers from the store once results were persisted", func() {
			resp, _ := request(http.MethodGet, "/api/places/nearby?lat=41.0082&lng=28.9784&radius=1000&type=cafe")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			res.Wait()

			resp, env := request(http.MethodGet, "/api/places/nearby?lat=41.0082&lng=28.9784&radius=2000&type=cafe")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var second places.SearchNearbyResponse
			Expect(json.Unmarshal(env.Data, &second)).To(Succeed())
			Expect(second.Places).To(HaveLen(2))
			Expect(upstream.count("/v1/places:searchNearby")).To(Equal(1))
		})

		It("rejects invalid coordinates", func() {
			resp, env := request(http.MethodGet, "/api/places/nearby?lat=95&lng=28")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(env.Error.Code).To(Equal(common.CodeValidation))
			Expect(upstream.count("/v1/places:searchNearby")).To(BeZero())
		})
	})

	Describe("text search", func() {
		It("shares one cache entry across page sizes", func() {
			resp, _ := request(http.MethodGet, "/api/places/text-search?query=Pizza&maxResults=5")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			resp, _ = request(http.MethodGet, "/api/places/text-search?query=%20pizza%20&maxResults=10")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			Expect(upstream.count("/v1/places:searchText")).To(Equal(1))
		})

		It("persists hits before answering", func() {
			resp, _ := request(http.MethodGet, "/api/places/text-search?query=pizza")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			resp, env := request(http.MethodGet, "/api/places/details/t1")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var details places.PlaceDetails
			Expect(json.Unmarshal(env.Data, &details)).To(Succeed())
			Expect(details.FormattedAddress).To(Equal("Main St 1"))
			Expect(upstream.count("/v1/places/t1")).To(BeZero())
		})
	})

	Describe("details", func() {
		It("maps upstream failures to service unavailable", func() {
			resp, env := request(http.MethodGet, "/api/places/details/unknown")
			Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))
			Expect(env.Error.Code).To(Equal(common.CodeExternalService))
		})
	})

	Describe("sync jobs", func() {
		It("runs a job to completion and fills the store", func() {
			resp, env := request(http.MethodPost, "/api/sync/locations?lat=41.0082&lng=28.9784&radius=1500&type=cafe")
			Expect(resp.StatusCode).To(Equal(http.StatusAccepted))

			var accepted struct {
				JobID string `json:"jobId"`
			}
			Expect(json.Unmarshal(env.Data, &accepted)).To(Succeed())
			Expect(accepted.JobID).NotTo(BeEmpty())

			Eventually(func() string {
				_, env := request(http.MethodGet, "/api/sync/status/"+accepted.JobID)
				var job struct {
					Status string `json:"status"`
				}
				Expect(json.Unmarshal(env.Data, &job)).To(Succeed())
				return job.Status
			}).WithTimeout(5 * time.Second).WithPolling(20 * time.Millisecond).Should(Equal(string(status.PhaseCompleted)))

			resp, env = request(http.MethodGet, "/api/places/details/p2")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var details places.PlaceDetails
			Expect(json.Unmarshal(env.Data, &details)).To(Succeed())
			Expect(details.FormattedAddress).To(Equal("Street p2"))
			Expect(upstream.count("/v1/places/p2")).To(Equal(1))
		})

		It("reports unknown jobs as not found", func() {
			resp, env := request(http.MethodGet, "/api/sync/status/does-not-exist")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			Expect(env.Error.Code).To(Equal(common.CodeNotFound))
		})

		It("rejects invalid areas without creating a job", func() {
			resp, env := request(http.MethodPost, "/api/sync/locations?lat=41&lng=29&radius=0")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(env.Error.Code).To(Equal(common.CodeValidation))
		})
	})

	Describe("system endpoints", func() {
		It("reports readiness of the store", func() {
			resp, err := http.Get(server.URL + "/readiness")
			Expect(err).NotTo(HaveOccurred())
			defer func() {
				_ = resp.Body.Close()
			}()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})
})
