package tile

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

// ProgressStage identifies which phase of a remote load a progress report
// belongs to.
type ProgressStage uint8

const (
	// StageDownloading covers descriptor and layer fetches.
	StageDownloading ProgressStage = iota

	// StageBuilding covers decode and cache construction.
	StageBuilding
)

// String returns a human-readable stage name.
func (s ProgressStage) String() string {
	switch s {
	case StageDownloading:
		return "downloading"
	case StageBuilding:
		return "building"
	default:
		return "unknown"
	}
}

// ProgressFunc receives load progress. fraction is in [0, 1] and is
// nondecreasing within a stage. Downloads run on multiple goroutines, but
// calls to the callback are serialized, so it needs no locking of its own.
type ProgressFunc func(stage ProgressStage, fraction float64)

// Descriptor is the JSON document a remote tile service returns for one
// tile set.
type Descriptor struct {
	TileCount  int        `json:"tileCount"`
	LayerCount int        `json:"layerCount"`
	Tiles      []TileDesc `json:"tiles"`

	// ThumbnailURL optionally points at a preview image for the whole set.
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

// TileDesc describes one tile of a remote set.
type TileDesc struct {
	// LayerURLs point at the encoded layer images, in layer order.
	LayerURLs []string `json:"layerUrls"`

	// PublicURL optionally points at a shareable page for the tile.
	PublicURL string `json:"publicUrl,omitempty"`
}

// defaultFetchConcurrency bounds parallel layer downloads.
const defaultFetchConcurrency = 8

// RemoteSource serves tiles described by a Descriptor fetched over HTTP.
// Layer bytes are downloaded once, up front, by Fetch; afterwards the source
// serves from memory like MemorySource.
type RemoteSource struct {
	client      *http.Client
	concurrency int
	onProgress  ProgressFunc

	desc Descriptor

	mu    sync.Mutex
	tiles [][][]byte // populated by Fetch
}

// RemoteOption configures a RemoteSource.
type RemoteOption func(*RemoteSource)

// WithHTTPClient sets the HTTP client used for all fetches.
// Defaults to http.DefaultClient.
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(s *RemoteSource) { s.client = c }
}

// WithFetchConcurrency bounds the number of parallel layer downloads.
// Values below 1 fall back to the default of 8.
func WithFetchConcurrency(n int) RemoteOption {
	return func(s *RemoteSource) {
		if n >= 1 {
			s.concurrency = n
		}
	}
}

// WithProgress registers a progress callback for the download stage.
func WithProgress(fn ProgressFunc) RemoteOption {
	return func(s *RemoteSource) { s.onProgress = fn }
}

// FetchDescriptor downloads and decodes a tile-set descriptor.
func FetchDescriptor(ctx context.Context, client *http.Client, url string) (Descriptor, error) {
	if client == nil {
		client = http.DefaultClient
	}
	var desc Descriptor
	body, err := fetch(ctx, client, url)
	if err != nil {
		return desc, err
	}
	if err := json.Unmarshal(body, &desc); err != nil {
		return desc, fmt.Errorf("%w: %v", ErrBadDescriptor, err)
	}
	if err := desc.validate(); err != nil {
		return desc, err
	}
	return desc, nil
}

// validate checks internal consistency of a descriptor.
func (d Descriptor) validate() error {
	if d.TileCount <= 0 || d.LayerCount <= 0 {
		return fmt.Errorf("%w: tileCount=%d layerCount=%d", ErrBadDescriptor, d.TileCount, d.LayerCount)
	}
	if len(d.Tiles) != d.TileCount {
		return fmt.Errorf("%w: descriptor lists %d tiles, tileCount=%d", ErrBadDescriptor, len(d.Tiles), d.TileCount)
	}
	for i, t := range d.Tiles {
		if len(t.LayerURLs) != d.LayerCount {
			return fmt.Errorf("%w: tile %d has %d layer URLs, want %d", ErrBadDescriptor, i, len(t.LayerURLs), d.LayerCount)
		}
	}
	return nil
}

// NewRemoteSource creates a source for a validated descriptor.
// Call Fetch before handing the source to Load.
func NewRemoteSource(desc Descriptor, opts ...RemoteOption) (*RemoteSource, error) {
	if err := desc.validate(); err != nil {
		return nil, err
	}
	s := &RemoteSource{
		client:      http.DefaultClient,
		concurrency: defaultFetchConcurrency,
		desc:        desc,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Fetch downloads every layer of every tile, bounded by the configured
// concurrency. Progress is reported on StageDownloading as layers complete.
// Any failed download aborts the whole fetch.
func (s *RemoteSource) Fetch(ctx context.Context) error {
	total := s.desc.TileCount * s.desc.LayerCount
	tiles := make([][][]byte, s.desc.TileCount)
	for i := range tiles {
		tiles[i] = make([][]byte, s.desc.LayerCount)
	}

	var done int
	var progressMu sync.Mutex
	report := func() {
		if s.onProgress == nil {
			return
		}
		// The callback runs under the same lock that advances the counter:
		// releasing it before the call would let a later fraction overtake
		// an earlier one on another goroutine.
		progressMu.Lock()
		done++
		s.onProgress(StageDownloading, float64(done)/float64(total))
		progressMu.Unlock()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for ti := range s.desc.Tiles {
		for li, url := range s.desc.Tiles[ti].LayerURLs {
			g.Go(func() error {
				data, err := fetch(ctx, s.client, url)
				if err != nil {
					return err
				}
				tiles[ti][li] = data
				report()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.mu.Lock()
	s.tiles = tiles
	s.mu.Unlock()
	logger().Info("remote tile set fetched",
		"tiles", s.desc.TileCount, "layers", s.desc.LayerCount)
	return nil
}

// TileCount returns the number of tiles.
func (s *RemoteSource) TileCount() int { return s.desc.TileCount }

// LayerCount returns the number of layers per tile.
func (s *RemoteSource) LayerCount() int { return s.desc.LayerCount }

// PublicURL returns the shareable page URL of one tile, if the service
// provided one.
func (s *RemoteSource) PublicURL(index int) string {
	if index < 0 || index >= len(s.desc.Tiles) {
		return ""
	}
	return s.desc.Tiles[index].PublicURL
}

// TileLayers serves the prefetched layers of one tile.
// Fetch must have completed first.
func (s *RemoteSource) TileLayers(_ context.Context, index int) ([][]byte, error) {
	s.mu.Lock()
	tiles := s.tiles
	s.mu.Unlock()
	if tiles == nil {
		return nil, fmt.Errorf("%w: remote source not fetched", ErrUnavailable)
	}
	if index < 0 || index >= len(tiles) {
		return nil, fmt.Errorf("%w: tile index %d out of range", ErrUnavailable, index)
	}
	return tiles[index], nil
}

// Thumbnail downloads the set's preview image, downscaled so its largest
// side is at most maxSide pixels. Returns ErrUnavailable if the descriptor
// has no thumbnail.
func (s *RemoteSource) Thumbnail(ctx context.Context, maxSide int) (image.Image, error) {
	if s.desc.ThumbnailURL == "" {
		return nil, fmt.Errorf("%w: no thumbnail", ErrUnavailable)
	}
	data, err := fetch(ctx, s.client, s.desc.ThumbnailURL)
	if err != nil {
		return nil, err
	}
	img, err := decodeLayer(data)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	side := max(b.Dx(), b.Dy())
	if maxSide <= 0 || side <= maxSide {
		return img, nil
	}
	scale := float64(maxSide) / float64(side)
	dst := image.NewRGBA(image.Rect(0, 0,
		int(float64(b.Dx())*scale), int(float64(b.Dy())*scale)))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst, nil
}

// fetch performs one HTTP GET and returns the body.
func fetch(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: GET %s: %s", ErrUnavailable, url, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return body, nil
}
