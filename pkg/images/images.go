// Package images decodes document images and caches them per URL.
package images

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"sync"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// Decode parses an encoded image (PNG, JPEG, or GIF).
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("images: decode: %w", err)
	}
	return img, nil
}

// Broken is the placeholder shown for images that failed to load: a gray
// box with a red cross, built programmatically so no asset file is needed.
var Broken = brokenImage()

func brokenImage() image.Image {
	const size = 16
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	gray := color.RGBA{R: 0xcc, G: 0xcc, B: 0xcc, A: 0xff}
	red := color.RGBA{R: 0xcc, A: 0xff}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := gray
			if x == y || x == size-1-y {
				c = red
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// Cache memoizes decoded images by URL so repeated <img> tags and reloads
// reuse pixels.
type Cache struct {
	mu     sync.Mutex
	images map[string]image.Image
}

func NewCache() *Cache {
	return &Cache{images: make(map[string]image.Image)}
}

// Get returns the cached image for a URL, or false.
func (c *Cache) Get(url string) (image.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	img, ok := c.images[url]
	return img, ok
}

// Put stores a decoded image.
func (c *Cache) Put(url string, img image.Image) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.images[url] = img
}
