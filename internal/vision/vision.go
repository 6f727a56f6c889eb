package vision

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Speshl/gorrc_swerve/internal/anglemath"
	"github.com/Speshl/gorrc_swerve/internal/positioning"
	"github.com/Speshl/gorrc_swerve/internal/vector"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	reconnectDelay = time.Second
	writeTimeout   = time.Second

	LedOff = 1
	LedOn  = 3

	CamVision = 0
	CamDriver = 1
)

// Result is one pipeline result pushed by the camera.
// BotPose is x, y, z, roll, pitch, yaw with yaw counter-clockwise from the field x axis.
type Result struct {
	Valid     int       `json:"tv"`
	BotPose   []float64 `json:"botpose"`
	Timestamp float64   `json:"ts"`
}

// ModeRequest switches the camera between targeting and driver view.
type ModeRequest struct {
	LedMode int `json:"ledMode"`
	CamMode int `json:"camMode"`
}

// Illuminator is the light that helps the camera find retroreflective targets.
type Illuminator interface {
	SetOn(on bool)
}

// Camera keeps the newest field pose from a vision coprocessor over a websocket.
type Camera struct {
	url    string
	maxAge time.Duration
	log    *zap.SugaredLogger
	light  Illuminator

	modeCh chan ModeRequest

	lock       sync.Mutex
	pose       positioning.Pose
	locked     bool
	receivedAt time.Time
	active     bool
}

func NewCamera(url string, maxAge time.Duration, light Illuminator, log *zap.SugaredLogger) *Camera {
	return &Camera{
		url:    url,
		maxAge: maxAge,
		log:    log,
		light:  light,
		modeCh: make(chan ModeRequest, 1),
	}
}

// SetMode never blocks; the request is written by the connection goroutine.
func (c *Camera) SetMode(active bool) error {
	request := ModeRequest{LedMode: LedOff, CamMode: CamDriver}
	if active {
		request = ModeRequest{LedMode: LedOn, CamMode: CamVision}
	}

	c.lock.Lock()
	c.active = active
	c.lock.Unlock()

	if c.light != nil {
		c.light.SetOn(active)
	}

	select {
	case <-c.modeCh: //replace any request not yet written
	default:
	}
	select {
	case c.modeCh <- request:
	default:
	}
	return nil
}

// FieldPose returns the latest pose while the camera has a fresh target lock.
func (c *Camera) FieldPose() (positioning.Pose, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if !c.active || !c.locked {
		return positioning.Pose{}, false
	}
	if c.maxAge > 0 && time.Since(c.receivedAt) > c.maxAge {
		return positioning.Pose{}, false
	}
	return c.pose, true
}

func (c *Camera) apply(result Result) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.receivedAt = time.Now()
	c.locked = result.Valid == 1 && len(result.BotPose) >= 6
	if !c.locked {
		return
	}
	c.pose = positioning.Pose{
		Position: vector.New(result.BotPose[0], result.BotPose[1]),
		Heading:  anglemath.ConformAngle(90 - result.BotPose[5]),
	}
}

// Start keeps a connection open until ctx is done, reconnecting after failures.
func (c *Camera) Start(ctx context.Context) error {
	c.log.Infow("starting vision client", "url", c.url)
	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			c.log.Info("vision client stopped")
			return ctx.Err()
		}
		c.log.Warnw("vision connection lost", "error", err)

		c.lock.Lock()
		c.locked = false
		c.lock.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

func (c *Camera) session(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("error dialing vision - %w", err)
	}
	defer conn.Close()
	c.log.Infow("vision connected", "url", c.url)

	c.lock.Lock()
	active := c.active
	c.lock.Unlock()
	if active {
		err = c.writeMode(conn, ModeRequest{LedMode: LedOn, CamMode: CamVision})
		if err != nil {
			return err
		}
	}

	readErr := make(chan error, 1)
	go func() {
		for {
			var result Result
			err := conn.ReadJSON(&result)
			if err != nil {
				readErr <- fmt.Errorf("error reading vision result - %w", err)
				return
			}
			c.apply(result)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeTimeout))
			return ctx.Err()
		case err := <-readErr:
			return err
		case request := <-c.modeCh:
			err := c.writeMode(conn, request)
			if err != nil {
				return err
			}
		}
	}
}

func (c *Camera) writeMode(conn *websocket.Conn, request ModeRequest) error {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err := conn.WriteJSON(request)
	if err != nil {
		return fmt.Errorf("error writing vision mode - %w", err)
	}
	return nil
}
