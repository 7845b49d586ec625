// Command lantern is a windowed shell around the rendering engine: it loads
// a page into a tab, drives the frame loop, and forwards input events.
package main

import (
	"fmt"
	"image"
	"os"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lantern/pkg/browser"
	"lantern/pkg/css"
	"lantern/pkg/layout"
	"lantern/pkg/net"
)

func main() {
	var (
		width    float64
		height   float64
		darkMode bool
		verbose  bool
	)

	root := &cobra.Command{
		Use:   "lantern [url]",
		Short: "A small incremental-rendering web browser",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rawURL := "about:blank"
			if len(args) == 1 {
				rawURL = args[0]
			}
			url, err := net.Parse(rawURL)
			if err != nil {
				return fmt.Errorf("parsing %q: %w", rawURL, err)
			}

			logger := zap.NewNop()
			if verbose {
				logger, err = zap.NewDevelopment()
				if err != nil {
					return err
				}
			}
			layout.SetLogger(logger)

			run(url, width, height, darkMode, logger)
			return nil
		},
	}
	root.Flags().Float64Var(&width, "width", 800, "window width in pixels")
	root.Flags().Float64Var(&height, "height", 600, "window height in pixels")
	root.Flags().BoolVar(&darkMode, "dark", false, "start in dark mode")
	root.Flags().BoolVarP(&verbose, "verbose", "v", false, "log diagnostics to stderr")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(url *net.URL, width, height float64, darkMode bool, logger *zap.Logger) {
	b := browser.New(width, height, darkMode, logger)
	b.NewTab(url)

	a := app.New()
	w := a.NewWindow("lantern")
	w.Resize(fyne.NewSize(float32(width), float32(height)))

	view := newPageView(b.Surface(), func(x, y float64) {
		b.HandleClick(x, y)
	})
	w.SetContent(view)
	w.Canvas().SetOnTypedRune(b.HandleKey)
	w.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
		switch ev.Name {
		case fyne.KeyDown:
			b.HandleDown()
		case fyne.KeyReturn, fyne.KeyEnter:
			b.HandleEnter()
		case fyne.KeyTab:
			b.HandleTab()
		case fyne.KeyLeft:
			b.HandleBack()
		case fyne.KeyF1:
			b.ToggleDarkMode()
		case fyne.KeyPlus, fyne.KeyEqual:
			b.HandleZoom(true)
		case fyne.KeyMinus:
			b.HandleZoom(false)
		case fyne.Key0:
			b.HandleResetZoom()
		}
	})

	ticker := time.NewTicker(css.RefreshRate)
	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				b.ScheduleAnimationFrame()
				b.CompositeRasterAndDraw()
				fyne.Do(func() {
					view.update(b.Surface())
					if u := b.ActiveURL(); u != nil {
						w.SetTitle("lantern - " + u.String())
					}
				})
			}
		}
	}()

	w.ShowAndRun()
	ticker.Stop()
	close(stop)
	b.HandleQuit()
}

// pageView shows the browser's raster surface and reports clicks in surface
// coordinates.
type pageView struct {
	widget.BaseWidget
	img   *canvas.Image
	onTap func(x, y float64)
}

var _ fyne.Tappable = (*pageView)(nil)

func newPageView(src image.Image, onTap func(x, y float64)) *pageView {
	p := &pageView{img: canvas.NewImageFromImage(src), onTap: onTap}
	p.img.FillMode = canvas.ImageFillOriginal
	p.ExtendBaseWidget(p)
	return p
}

func (p *pageView) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(p.img)
}

func (p *pageView) Tapped(ev *fyne.PointEvent) {
	p.onTap(float64(ev.Position.X), float64(ev.Position.Y))
}

func (p *pageView) update(src image.Image) {
	p.img.Image = src
	p.img.Refresh()
}
