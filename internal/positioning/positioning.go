package positioning

import (
	"fmt"

	"github.com/Speshl/gorrc_swerve/internal/anglemath"
	"github.com/Speshl/gorrc_swerve/internal/vector"
)

// HeadingSensor reports yaw in degrees, counter-clockwise positive.
type HeadingSensor interface {
	HeadingDegrees() float64
}

// VisionSensor reports a field pose while it has a target lock.
type VisionSensor interface {
	SetMode(active bool) error
	FieldPose() (Pose, bool)
}

// Pose is a field position plus a heading in the turn angle convention.
type Pose struct {
	Position vector.Vector
	Heading  float64
}

func (p Pose) String() string {
	return fmt.Sprintf("%s @ %.2f", p.Position, p.Heading)
}

type Config struct {
	Start         vector.Vector
	HeadingOffset float64
	HeadingBlend  float64 //0 ignores vision heading, 1 snaps to it
}

// FieldPositioning fuses a continuous heading with intermittent vision fixes.
// Update is called once per tick before any reader.
type FieldPositioning struct {
	heading HeadingSensor
	vision  VisionSensor
	cfg     Config

	headingOffset float64
	pose          Pose
	locked        bool
}

func NewFieldPositioning(heading HeadingSensor, vision VisionSensor, cfg Config) (*FieldPositioning, error) {
	if heading == nil {
		return nil, fmt.Errorf("field positioning requires a heading sensor")
	}
	if vision == nil {
		return nil, fmt.Errorf("field positioning requires a vision sensor")
	}
	if cfg.HeadingBlend < 0 || cfg.HeadingBlend > 1 {
		return nil, fmt.Errorf("heading blend must be within [0,1], got %f", cfg.HeadingBlend)
	}

	f := &FieldPositioning{
		heading:       heading,
		vision:        vision,
		cfg:           cfg,
		headingOffset: cfg.HeadingOffset,
		pose:          Pose{Position: cfg.Start},
	}
	f.refreshHeading()
	return f, nil
}

// SetCamMode switches the vision sensor between active targeting and passive viewing.
func (f *FieldPositioning) SetCamMode(active bool) error {
	err := f.vision.SetMode(active)
	if err != nil {
		return fmt.Errorf("error setting cam mode - %w", err)
	}
	return nil
}

func (f *FieldPositioning) Update() {
	fresh := f.refreshHeading()

	visionPose, ok := f.vision.FieldPose()
	f.locked = ok && visionPose.Position.IsFinite()
	if !f.locked {
		return
	}

	f.pose.Position = visionPose.Position
	if fresh && f.cfg.HeadingBlend > 0 && anglemath.IsFinite(visionPose.Heading) {
		correction := f.cfg.HeadingBlend * anglemath.GetDelta(visionPose.Heading, f.pose.Heading)
		f.headingOffset = anglemath.ConformAngle(f.headingOffset + correction)
		f.pose.Heading = anglemath.ConformAngle(f.pose.Heading + correction)
	}
}

// refreshHeading reports false when the gyro reading was rejected and the heading kept.
func (f *FieldPositioning) refreshHeading() bool {
	yaw := f.heading.HeadingDegrees()
	if !anglemath.IsFinite(yaw) {
		return false
	}
	f.pose.Heading = anglemath.ConformAngle(-yaw + f.headingOffset)
	return true
}

func (f *FieldPositioning) Position() vector.Vector {
	return f.pose.Position
}

// TurnAngle is the chassis heading, comparable with vector.TurnAngleDeg.
func (f *FieldPositioning) TurnAngle() float64 {
	return f.pose.Heading
}

func (f *FieldPositioning) Pose() Pose {
	return f.pose
}

func (f *FieldPositioning) HasLock() bool {
	return f.locked
}
