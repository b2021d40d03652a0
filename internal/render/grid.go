package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"sync"

	xdraw "golang.org/x/image/draw"

	"mines-predictor-bot/internal/models"
)

// maxAssetBytes bounds a downloaded cell or diamond image.
const maxAssetBytes = 4 << 20

// GridRenderer composes a 5x5 board from a cell image and marks revealed
// tiles with a diamond scaled to the cell size. Both images are downloaded
// once and kept for later renders.
type GridRenderer struct {
	client     *http.Client
	cellURL    string
	diamondURL string
	maxBytes   int64

	mu      sync.Mutex
	cell    image.Image
	diamond image.Image
}

func NewGridRenderer(client *http.Client, cellURL, diamondURL string) *GridRenderer {
	if client == nil {
		client = http.DefaultClient
	}
	return &GridRenderer{
		client:     client,
		cellURL:    cellURL,
		diamondURL: diamondURL,
		maxBytes:   maxAssetBytes,
	}
}

func (r *GridRenderer) Render(ctx context.Context, revealed []int) ([]byte, error) {
	cell, diamond, err := r.assets(ctx)
	if err != nil {
		return nil, err
	}

	cb := cell.Bounds()
	w, h := cb.Dx(), cb.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("cell image is empty")
	}

	board := image.NewRGBA(image.Rect(0, 0, w*models.GridSize, h*models.GridSize))
	for row := 0; row < models.GridSize; row++ {
		for col := 0; col < models.GridSize; col++ {
			draw.Draw(board, cellRect(row, col, w, h), cell, cb.Min, draw.Over)
		}
	}

	gem := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(gem, gem.Bounds(), diamond, diamond.Bounds(), xdraw.Over, nil)

	for _, tile := range revealed {
		if tile < 0 || tile >= models.TileCount {
			continue
		}
		row, col := tile/models.GridSize, tile%models.GridSize
		draw.Draw(board, cellRect(row, col, w, h), gem, image.Point{}, draw.Over)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, board); err != nil {
		return nil, fmt.Errorf("failed to encode board: %w", err)
	}
	return buf.Bytes(), nil
}

// assets downloads missing images without holding the lock, so one slow
// fetch does not stall renders that need nothing new. When two downloads race,
// the first stored image is kept.
func (r *GridRenderer) assets(ctx context.Context) (image.Image, image.Image, error) {
	r.mu.Lock()
	cell, diamond := r.cell, r.diamond
	r.mu.Unlock()

	if cell != nil && diamond != nil {
		return cell, diamond, nil
	}

	if cell == nil {
		img, err := r.fetch(ctx, r.cellURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load cell image: %w", err)
		}
		cell = img
	}

	if diamond == nil {
		img, err := r.fetch(ctx, r.diamondURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load diamond image: %w", err)
		}
		diamond = img
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cell == nil {
		r.cell = cell
	}
	if r.diamond == nil {
		r.diamond = diamond
	}
	return r.cell, r.diamond, nil
}

func (r *GridRenderer) fetch(ctx context.Context, url string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	img, _, err := image.Decode(io.LimitReader(resp.Body, r.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", url, err)
	}
	return img, nil
}

func cellRect(row, col, w, h int) image.Rectangle {
	return image.Rect(col*w, row*h, (col+1)*w, (row+1)*h)
}
