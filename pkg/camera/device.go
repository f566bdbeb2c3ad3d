package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-guide/pkg/guidance"
)

// ErrClosed is returned by Capture after Close.
var ErrClosed = errors.New("camera: device closed")

// Device is an OpenCV video capture device producing JPEG frames.
type Device struct {
	mu      sync.Mutex
	cap     *gocv.VideoCapture
	cfg     Config
	logger  *slog.Logger
	closed  bool
	latest  []byte
	latestT time.Time
}

// Open opens the configured device. A device that cannot be opened is
// reported as a guidance.PermissionError.
func Open(cfg Config, logger *slog.Logger) (*Device, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("camera: invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	vc, err := gocv.OpenVideoCapture(deviceID(cfg.Device))
	if err != nil {
		return nil, &guidance.PermissionError{Missing: []string{"camera"}, Err: err}
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, &guidance.PermissionError{Missing: []string{"camera"}, Err: fmt.Errorf("device %s not opened", cfg.Device)}
	}

	d := &Device{cap: vc, cfg: cfg, logger: logger.With("component", "camera")}
	d.apply(cfg)
	d.logger.Info("camera opened", "device", cfg.Device, "width", cfg.Width, "height", cfg.Height)
	return d, nil
}

func deviceID(s string) any {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return s
}

// apply pushes driver-level settings. Callers hold mu or own d exclusively.
func (d *Device) apply(cfg Config) {
	d.cap.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	d.cap.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	d.cap.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))
	if cfg.Brightness != 0 {
		d.cap.Set(gocv.VideoCaptureBrightness, cfg.Brightness)
	}
}

// Reconfigure applies cfg to the open device. Suitable as
// Manager.OnConfigChange.
func (d *Device) Reconfigure(cfg Config) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	cfg.Device = d.cfg.Device
	d.cfg = cfg
	d.apply(cfg)
	return nil
}

// Available reports whether the device is open.
func (d *Device) Available() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.closed
}

// Capture reads one frame and encodes it as JPEG.
func (d *Device) Capture(ctx context.Context) (guidance.Frame, error) {
	if err := ctx.Err(); err != nil {
		return guidance.Frame{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return guidance.Frame{}, ErrClosed
	}

	img := gocv.NewMat()
	defer img.Close()
	if ok := d.cap.Read(&img); !ok || img.Empty() {
		return guidance.Frame{}, errors.New("camera: empty frame")
	}

	out := img
	if d.cfg.ZoomLevel > 1.0 {
		crop := img.Region(zoomRect(img.Cols(), img.Rows(), d.cfg.ZoomLevel))
		defer crop.Close()
		out = crop
	}
	if d.cfg.Mirror {
		flipped := gocv.NewMat()
		defer flipped.Close()
		gocv.Flip(out, &flipped, 1)
		out = flipped
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, out, []int{gocv.IMWriteJpegQuality, d.cfg.Quality})
	if err != nil {
		return guidance.Frame{}, fmt.Errorf("camera: encode: %w", err)
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())

	frame := guidance.Frame{
		Data:       data,
		Width:      out.Cols(),
		Height:     out.Rows(),
		CapturedAt: time.Now(),
	}
	d.latest, d.latestT = frame.Data, frame.CapturedAt
	return frame, nil
}

// Latest returns the most recent captured JPEG, if any.
func (d *Device) Latest() ([]byte, time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.latest, d.latestT
}

// Close releases the device.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.cap.Close()
}

// zoomRect returns the centered crop for a digital zoom factor.
func zoomRect(w, h int, zoom float64) image.Rectangle {
	if zoom <= 1.0 {
		return image.Rect(0, 0, w, h)
	}
	cw := int(float64(w) / zoom)
	ch := int(float64(h) / zoom)
	x := (w - cw) / 2
	y := (h - ch) / 2
	return image.Rect(x, y, x+cw, y+ch)
}

var _ guidance.CaptureDevice = (*Device)(nil)
