package gpu

import (
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// Texture upload errors.
var (
	// ErrNilCreator is returned when uploading without a texture creator.
	ErrNilCreator = errors.New("gpu: texture creator is nil")

	// ErrNilLayer is returned when a tile layer has no pixels.
	ErrNilLayer = errors.New("gpu: tile layer is nil")
)

// TileTextureFormat is the GPU pixel format tile layers are uploaded in.
// Decoded layers are always RGBA, 8 bits per channel.
const TileTextureFormat = gputypes.TextureFormatRGBA8Unorm

// textureDestroyer matches the Destroy method of host texture types.
type textureDestroyer interface {
	Destroy()
}

// premultipliedMarker is implemented by host textures that track whether
// their pixel data carries premultiplied alpha.
type premultipliedMarker interface {
	SetPremultiplied(bool)
}

// UploadTileSet uploads every layer of every tile as one GPU texture each,
// returning them indexed as [tile][layer]. On any failure the textures
// created so far are destroyed and the error is returned; there is no
// partial upload.
func UploadTileSet(creator gpucontext.TextureCreator, tiles [][]*image.RGBA) ([][]gpucontext.Texture, error) {
	if creator == nil {
		return nil, ErrNilCreator
	}

	out := make([][]gpucontext.Texture, len(tiles))
	for ti, layers := range tiles {
		out[ti] = make([]gpucontext.Texture, len(layers))
		for li, img := range layers {
			tex, err := uploadLayer(creator, img)
			if err != nil {
				DestroyTextures(out)
				return nil, fmt.Errorf("tile %d layer %d: %w", ti, li, err)
			}
			out[ti][li] = tex
		}
	}
	return out, nil
}

// uploadLayer creates one GPU texture from decoded RGBA pixels.
func uploadLayer(creator gpucontext.TextureCreator, img *image.RGBA) (gpucontext.Texture, error) {
	if img == nil {
		return nil, ErrNilLayer
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	// NewTextureFromRGBA expects tightly packed rows.
	pix := img.Pix
	if img.Stride != w*4 {
		packed := make([]byte, w*h*4)
		for y := 0; y < h; y++ {
			copy(packed[y*w*4:(y+1)*w*4], img.Pix[y*img.Stride:y*img.Stride+w*4])
		}
		pix = packed
	}

	created, err := creator.NewTextureFromRGBA(w, h, pix)
	if err != nil {
		return nil, err
	}
	var asAny any = created
	tex, ok := asAny.(gpucontext.Texture)
	if !ok {
		return nil, fmt.Errorf("gpu: creator returned %T, not a gpucontext.Texture", created)
	}
	// image.RGBA carries premultiplied alpha; tell hosts that track it so
	// they pick the BlendFactorOne pipeline.
	if pm, ok := asAny.(premultipliedMarker); ok {
		pm.SetPremultiplied(true)
	}
	return tex, nil
}

// DestroyTextures destroys every non-nil texture in the set. Safe to call
// with a nil set or with entries that do not support destruction.
func DestroyTextures(tiles [][]gpucontext.Texture) {
	for _, layers := range tiles {
		for _, tex := range layers {
			if tex == nil {
				continue
			}
			if d, ok := any(tex).(textureDestroyer); ok {
				d.Destroy()
			}
		}
	}
}
