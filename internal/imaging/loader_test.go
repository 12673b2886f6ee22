package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"sync"
	"testing"
)

// createTestImage creates a simple test image file and returns its path.
// The caller is responsible for removing the file.
func createTestImage(t *testing.T, width, height int, c color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	tmpFile, err := os.CreateTemp("", "test-image-*.png")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer tmpFile.Close()

	if err := png.Encode(tmpFile, img); err != nil {
		os.Remove(tmpFile.Name())
		t.Fatalf("failed to encode image: %v", err)
	}

	return tmpFile.Name()
}

// encodePNG returns the PNG encoding of a solid-colour image.
func encodePNG(t *testing.T, width, height int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return buf.Bytes()
}

func TestNewImageCache(t *testing.T) {
	cache := NewImageCache()
	if cache == nil {
		t.Fatal("NewImageCache returned nil")
	}
	if cache.images == nil {
		t.Fatal("NewImageCache did not initialize images map")
	}
}

func TestImageCache_Load(t *testing.T) {
	cache := NewImageCache()
	imgPath := createTestImage(t, 100, 100, color.RGBA{255, 0, 0, 255})
	defer os.Remove(imgPath)

	r1, err := cache.Load(imgPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if r1.Width() != 100 || r1.Height() != 100 {
		t.Errorf("unexpected dimensions: got %dx%d, want 100x100", r1.Width(), r1.Height())
	}
	if r1.Format() != "png" {
		t.Errorf("Format: got %s, want png", r1.Format())
	}

	r2, err := cache.Load(imgPath)
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if r1 != r2 {
		t.Error("second Load did not return cached raster")
	}
}

func TestImageCache_Load_NonExistent(t *testing.T) {
	cache := NewImageCache()
	if _, err := cache.Load("/nonexistent/path/to/image.png"); err == nil {
		t.Error("Load should fail for non-existent file")
	}
}

func TestImageCache_Load_InvalidImage(t *testing.T) {
	cache := NewImageCache()

	tmpFile, err := os.CreateTemp("", "invalid-image-*.png")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpFile.WriteString("not an image")
	tmpFile.Close()
	defer os.Remove(tmpFile.Name())

	if _, err := cache.Load(tmpFile.Name()); err == nil {
		t.Error("Load should fail for invalid image data")
	}
}

func TestImageCache_ClearAndEvict(t *testing.T) {
	cache := NewImageCache()
	imgPath := createTestImage(t, 50, 50, color.RGBA{0, 255, 0, 255})
	defer os.Remove(imgPath)

	if _, err := cache.Load(imgPath); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	cache.Evict(imgPath)
	cache.mu.RLock()
	_, exists := cache.images[imgPath]
	cache.mu.RUnlock()
	if exists {
		t.Error("Evict did not remove raster from cache")
	}

	cache.Load(imgPath)
	cache.Clear()
	cache.mu.RLock()
	count := len(cache.images)
	cache.mu.RUnlock()
	if count != 0 {
		t.Errorf("Clear did not empty cache: %d rasters remain", count)
	}

	// Should not panic
	cache.Evict("/nonexistent/path")
}

func TestImageCache_ConcurrentAccess(t *testing.T) {
	cache := NewImageCache()
	imgPath := createTestImage(t, 50, 50, color.RGBA{128, 128, 128, 255})
	defer os.Remove(imgPath)

	var wg sync.WaitGroup
	errs := make(chan error, 100)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Load(imgPath); err != nil {
				errs <- err
			}
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent Load error: %v", err)
	}
}

func TestLoadImageInfo(t *testing.T) {
	cache := NewImageCache()
	imgPath := createTestImage(t, 200, 150, color.RGBA{255, 128, 64, 255})
	defer os.Remove(imgPath)

	info, err := LoadImageInfo(cache, imgPath)
	if err != nil {
		t.Fatalf("LoadImageInfo failed: %v", err)
	}

	if info.Width != 200 || info.Height != 150 {
		t.Errorf("dimensions: got %dx%d, want 200x150", info.Width, info.Height)
	}
	if info.Format != "png" {
		t.Errorf("Format: got %s, want png", info.Format)
	}
	if info.FileSizeBytes <= 0 {
		t.Error("FileSizeBytes should be positive")
	}
}

func TestDecode_Errors(t *testing.T) {
	if _, err := Decode(nil); err != ErrEmptyImage {
		t.Errorf("Decode(nil) = %v, want ErrEmptyImage", err)
	}
	if _, err := Decode([]byte("definitely not a png")); err == nil {
		t.Error("Decode should fail for garbage bytes")
	}
}

func TestGrayscale_TransparentIsPaper(t *testing.T) {
	r, err := Decode(encodePNG(t, 4, 4, color.NRGBA{0, 0, 0, 0}))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	gray := Grayscale(r.Image())
	if gray.Bounds().Dx() != 4 || gray.Bounds().Dy() != 4 {
		t.Fatalf("unexpected gray bounds %v", gray.Bounds())
	}
	if v := gray.GrayAt(1, 1).Y; v < 250 {
		t.Errorf("transparent pixel should read as white, got %d", v)
	}
}

func TestGrayscale(t *testing.T) {
	src := image.NewNRGBA(image.Rect(10, 20, 16, 24))
	for y := 20; y < 24; y++ {
		for x := 10; x < 16; x++ {
			src.Set(x, y, color.White)
		}
	}
	src.Set(10, 20, color.Black)
	src.Set(15, 23, color.NRGBA{128, 128, 128, 255})

	gray := Grayscale(src)
	if gray.Bounds() != image.Rect(0, 0, 6, 4) {
		t.Fatalf("bounds: got %v, want (0,0)-(6,4)", gray.Bounds())
	}

	tests := []struct {
		x, y int
		want uint8
	}{
		{0, 0, 0},
		{3, 2, 255},
		{5, 3, 128},
	}
	for _, tt := range tests {
		if got := gray.GrayAt(tt.x, tt.y).Y; got != tt.want {
			t.Errorf("GrayAt(%d,%d) = %d, want %d", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestPrepareSketch_FitsWithinBounds(t *testing.T) {
	r, err := Decode(encodePNG(t, 400, 200, color.White))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	prepared, err := PrepareSketch(r, 100)
	if err != nil {
		t.Fatalf("PrepareSketch failed: %v", err)
	}
	if prepared.Width() != 100 || prepared.Height() != 50 {
		t.Errorf("got %dx%d, want 100x50", prepared.Width(), prepared.Height())
	}
	if prepared.Format() != "png" {
		t.Errorf("Format: got %s, want png", prepared.Format())
	}

	same, err := PrepareSketch(r, 1024)
	if err != nil {
		t.Fatalf("PrepareSketch failed: %v", err)
	}
	if same.Width() != 400 || same.Height() != 200 {
		t.Errorf("small image should keep size, got %dx%d", same.Width(), same.Height())
	}

	if _, err := Decode(prepared.Bytes()); err != nil {
		t.Errorf("prepared bytes do not decode: %v", err)
	}
}
