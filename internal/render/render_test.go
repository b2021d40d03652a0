package render

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func near(a, b uint32) bool {
	if a > b {
		a, b = b, a
	}
	return b-a <= 0x0300
}

func TestChooseReveal(t *testing.T) {
	safe := []int{0, 1, 2, 3, 5, 6, 7, 8, 9, 10, 12, 13, 14}
	r := rand.New(rand.NewPCG(1, 2))

	for i := 0; i < 100; i++ {
		got := ChooseReveal(safe, r)
		require.GreaterOrEqual(t, len(got), 4)
		require.LessOrEqual(t, len(got), 6)

		seen := map[int]bool{}
		for _, tile := range got {
			require.Contains(t, safe, tile)
			require.False(t, seen[tile])
			seen[tile] = true
		}
	}

	assert.Equal(t, []int{0, 1, 2, 3, 5, 6, 7, 8, 9, 10, 12, 13, 14}, safe, "input must not be reordered")
}

func TestChooseReveal_FewSafeTiles(t *testing.T) {
	got := ChooseReveal([]int{3, 17}, nil)
	assert.Equal(t, []int{3, 17}, got)

	assert.Empty(t, ChooseReveal(nil, nil))
}

func TestTextGrid(t *testing.T) {
	grid := TextGrid([]int{0, 6, 24})
	rows := strings.Split(grid, "\n")
	require.Len(t, rows, 5)

	assert.Equal(t, "💎⬜⬜⬜⬜", rows[0])
	assert.Equal(t, "⬜💎⬜⬜⬜", rows[1])
	assert.Equal(t, "⬜⬜⬜⬜💎", rows[4])
}

func TestGridRenderer_Render(t *testing.T) {
	cellColor := color.RGBA{R: 30, G: 40, B: 60, A: 255}
	gemColor := color.RGBA{R: 0, G: 200, B: 255, A: 255}

	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/cell.png", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write(solidPNG(t, 8, 6, cellColor))
	})
	mux.HandleFunc("/diamond.png", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write(solidPNG(t, 16, 12, gemColor))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	r := NewGridRenderer(srv.Client(), srv.URL+"/cell.png", srv.URL+"/diamond.png")

	out, err := r.Render(context.Background(), []int{0, 12, 24})
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 30), img.Bounds())

	check := func(x, y int, want color.RGBA) {
		t.Helper()
		r, g, b, _ := img.At(x, y).RGBA()
		wr, wg, wb, _ := want.RGBA()
		assert.True(t, near(r, wr) && near(g, wg) && near(b, wb), "pixel (%d,%d) = %v, want %v", x, y, img.At(x, y), want)
	}

	check(4, 3, gemColor)   // tile 0
	check(20, 15, gemColor) // tile 12
	check(36, 27, gemColor) // tile 24
	check(12, 3, cellColor) // tile 1
	check(4, 27, cellColor) // tile 20

	_, err = r.Render(context.Background(), []int{1})
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load(), "assets are fetched once")
}

func TestGridRenderer_FetchError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	r := NewGridRenderer(nil, srv.URL+"/cell.png", srv.URL+"/diamond.png")

	_, err := r.Render(context.Background(), []int{0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cell image")
}

func TestGridRenderer_BadImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not an image"))
	}))
	defer srv.Close()

	r := NewGridRenderer(srv.Client(), srv.URL, srv.URL)

	_, err := r.Render(context.Background(), nil)
	assert.Error(t, err)
}

func TestGridRenderer_OversizedAsset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(solidPNG(t, 64, 64, color.White))
	}))
	defer srv.Close()

	r := NewGridRenderer(srv.Client(), srv.URL, srv.URL)
	r.maxBytes = 32

	_, err := r.Render(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode")
}

func TestGridRenderer_SlowFetchDoesNotBlockOthers(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})

	var cellHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/cell.png", func(w http.ResponseWriter, r *http.Request) {
		if cellHits.Add(1) == 1 {
			close(entered)
			<-release
		}
		w.Write(solidPNG(t, 4, 4, color.Black))
	})
	mux.HandleFunc("/diamond.png", func(w http.ResponseWriter, r *http.Request) {
		w.Write(solidPNG(t, 4, 4, color.White))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	defer close(release)

	r := NewGridRenderer(srv.Client(), srv.URL+"/cell.png", srv.URL+"/diamond.png")

	go r.Render(context.Background(), nil)
	<-entered

	done := make(chan error, 1)
	go func() {
		_, err := r.Render(context.Background(), []int{3})
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("render waited for another render's download")
	}
}
