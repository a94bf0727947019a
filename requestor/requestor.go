package requestor

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gregjones/httpcache"
	"golang.org/x/sync/singleflight"

	"github.com/launchdarkly/go-flagcore/ldmodel"
	"github.com/launchdarkly/go-flagcore/ldstoretypes"
)

// allData is the wire shape of a GET /sdk/latest-all response: a flat map of flag
// keys to flags, and segment keys to segments.
type allData struct {
	Flags    map[string]json.RawMessage `json:"flags"`
	Segments map[string]json.RawMessage `json:"segments"`
}

// Requestor is the single-owner HTTP client described by C5: it issues
// requestAllData/requestObject GETs, coalesces identical in-flight requests, and
// optionally serves conditional responses from a local ETag cache.
type Requestor struct {
	httpClient *http.Client
	baseURI    string
	headers    http.Header
	group      singleflight.Group
}

// NewRequestor builds a Requestor. If withCache is true, responses are cached
// in-process and conditional GETs are used so an unchanged poll costs only a 304.
func NewRequestor(httpClient *http.Client, baseURI string, headers http.Header, withCache bool) *Requestor {
	clientToUse := httpClient
	if withCache {
		modified := *httpClient
		modified.Transport = &httpcache.Transport{
			Cache:               httpcache.NewMemoryCache(),
			MarkCachedResponses: true,
			Transport:           httpClient.Transport,
		}
		clientToUse = &modified
	}
	return &Requestor{httpClient: clientToUse, baseURI: baseURI, headers: headers}
}

// RequestAllData performs a GET {baseUri}/sdk/latest-all, returning a full-store
// snapshot as ldstoretypes.Collection values ready for DataStore.Init, or (nil, true,
// nil) if the response was served from cache unchanged.
func (r *Requestor) RequestAllData() (collections []ldstoretypes.Collection, cached bool, err error) {
	v, err, _ := r.group.Do("latest-all", func() (interface{}, error) {
		body, wasCached, err := r.makeRequest("/sdk/latest-all")
		if err != nil {
			return nil, err
		}
		if wasCached {
			return requestAllResult{cached: true}, nil
		}
		var data allData
		if jsonErr := json.Unmarshal(body, &data); jsonErr != nil {
			return nil, fmt.Errorf("malformed poll response: %w", jsonErr)
		}
		collections, err := decodeAllData(data)
		if err != nil {
			return nil, err
		}
		return requestAllResult{collections: collections}, nil
	})
	if err != nil {
		return nil, false, err
	}
	result := v.(requestAllResult)
	return result.collections, result.cached, nil
}

type requestAllResult struct {
	collections []ldstoretypes.Collection
	cached      bool
}

func decodeAllData(data allData) ([]ldstoretypes.Collection, error) {
	flagItems := make([]ldstoretypes.KeyedItemDescriptor, 0, len(data.Flags))
	for key, raw := range data.Flags {
		flag, err := ldmodel.UnmarshalFeatureFlag(raw)
		if err != nil {
			return nil, fmt.Errorf("malformed flag %q: %w", key, err)
		}
		flagItems = append(flagItems, ldstoretypes.KeyedItemDescriptor{
			Key:  key,
			Item: ldstoretypes.ItemDescriptor{Version: flag.Version, Item: &flag},
		})
	}
	segmentItems := make([]ldstoretypes.KeyedItemDescriptor, 0, len(data.Segments))
	for key, raw := range data.Segments {
		segment, err := ldmodel.UnmarshalSegment(raw)
		if err != nil {
			return nil, fmt.Errorf("malformed segment %q: %w", key, err)
		}
		segmentItems = append(segmentItems, ldstoretypes.KeyedItemDescriptor{
			Key:  key,
			Item: ldstoretypes.ItemDescriptor{Version: segment.Version, Item: &segment},
		})
	}
	return []ldstoretypes.Collection{
		{Kind: ldmodel.Features, Items: flagItems},
		{Kind: ldmodel.Segments, Items: segmentItems},
	}, nil
}

// RequestObject performs a GET {baseUri}{kind.StreamAPIPath}{key}, used to resolve an
// `indirect/patch` streaming event.
func (r *Requestor) RequestObject(kind ldstoretypes.DataKind, key string) (ldstoretypes.ItemDescriptor, error) {
	path := kind.StreamAPIPath + key
	v, err, _ := r.group.Do("object:"+path, func() (interface{}, error) {
		body, _, err := r.makeRequest(path)
		if err != nil {
			return nil, err
		}
		switch kind.Name {
		case ldmodel.Features.Name:
			flag, err := ldmodel.UnmarshalFeatureFlag(body)
			if err != nil {
				return nil, fmt.Errorf("malformed flag %q: %w", key, err)
			}
			return ldstoretypes.ItemDescriptor{Version: flag.Version, Item: &flag}, nil
		case ldmodel.Segments.Name:
			segment, err := ldmodel.UnmarshalSegment(body)
			if err != nil {
				return nil, fmt.Errorf("malformed segment %q: %w", key, err)
			}
			return ldstoretypes.ItemDescriptor{Version: segment.Version, Item: &segment}, nil
		default:
			return nil, fmt.Errorf("unrecognized data kind: %s", kind.Name)
		}
	})
	if err != nil {
		return ldstoretypes.ItemDescriptor{}, err
	}
	return v.(ldstoretypes.ItemDescriptor), nil
}

func (r *Requestor) makeRequest(resource string) ([]byte, bool, error) {
	req, err := http.NewRequest(http.MethodGet, r.baseURI+resource, nil)
	if err != nil {
		return nil, false, err
	}
	reqURL := req.URL.String()
	for k, vv := range r.headers {
		req.Header[k] = vv
	}

	res, err := r.httpClient.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}()

	if err := checkForHTTPError(res.StatusCode, reqURL); err != nil {
		return nil, false, err
	}

	cached := res.Header.Get(httpcache.XFromCache) != ""
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, false, err
	}
	return body, cached, nil
}
