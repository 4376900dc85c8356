package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"posecam/calibration"
	"posecam/detection"

	"gopkg.in/yaml.v3"
)

// Global debug function for config package
var debugMsgFunc func(string, string, ...string)

// SetDebugFunction allows main package to provide debug function
func SetDebugFunction(fn func(string, string, ...string)) {
	debugMsgFunc = fn
}

func debugMsg(component, message string, ids ...string) {
	if debugMsgFunc != nil {
		debugMsgFunc(component, message, ids...)
	}
}

// CameraConfig is read once at startup; reload never changes it
type CameraConfig struct {
	CameraNumber        int     `yaml:"camera_number"`
	Width               int     `yaml:"width"`
	Height              int     `yaml:"height"`
	HFOVDegree          float64 `yaml:"hfov_degree"`
	FOVCorrectionFactor float64 `yaml:"fov_correction_factor"`
}

type ObjectConfig struct {
	RealShortestAxisMM float64 `yaml:"real_shortest_axis_mm"`
	RealLongestAxisMM  float64 `yaml:"real_longest_axis_mm"`
}

type EdgeConfig struct {
	GaussianBlurKernel int     `yaml:"gaussian_blur_kernel"`
	CannyThreshold1    float32 `yaml:"canny_threshold1"`
	CannyThreshold2    float32 `yaml:"canny_threshold2"`
	MinContourArea     float64 `yaml:"min_contour_area"`
	MorphKernel        int     `yaml:"morph_kernel"`
	MorphIterations    int     `yaml:"morph_iterations"`
}

type AxisConfig struct {
	Mode              string  `yaml:"mode"`
	AngleToleranceDeg float64 `yaml:"angle_tolerance_deg"`
}

// PointConfig is one calibration correspondence as written in the document
type PointConfig struct {
	Name  string     `yaml:"name"`
	Pixel [2]float64 `yaml:"pixel"`
	Robot [3]float64 `yaml:"robot"`
}

type OffsetConfig struct {
	OffsetXCM float64 `yaml:"offset_x_cm"`
	OffsetYCM float64 `yaml:"offset_y_cm"`
	OffsetZCM float64 `yaml:"offset_z_cm"`
}

type RobotTransformConfig struct {
	BaseRoll  float64 `yaml:"base_roll"`
	BasePitch float64 `yaml:"base_pitch"`
	BaseYaw   float64 `yaml:"base_yaw"`
	FallbackZ float64 `yaml:"fallback_z"`
}

type AutoSendConfig struct {
	SendIntervalSec float64 `yaml:"send_interval_sec"`
	ManualOnly      bool    `yaml:"manual_only"`
	DefaultOrderID  string  `yaml:"default_order_id"`
	DefaultZone     int     `yaml:"default_zone"`
}

type ModeConfig struct {
	TestMode bool `yaml:"test_mode"`
}

type StoreConfig struct {
	DatabaseURL     string `yaml:"database_url"`
	OrdersPath      string `yaml:"orders_path"`
	CredentialsFile string `yaml:"credentials_file"`
	PollIntervalMS  int    `yaml:"poll_interval_ms"`
	TimeoutMS       int    `yaml:"timeout_ms"`
}

// Document mirrors config.yaml
type Document struct {
	Camera            CameraConfig             `yaml:"camera"`
	Object            ObjectConfig             `yaml:"object"`
	EdgeDetection     EdgeConfig               `yaml:"edge_detection"`
	AxisDetection     AxisConfig               `yaml:"axis_detection"`
	CalibrationPoints map[string][]PointConfig `yaml:"calibration_points"`
	PixelCalibration  map[string]OffsetConfig  `yaml:"pixel_calibration"`
	ZoneAnswers       map[string][]float64     `yaml:"zone_answers"`
	RobotTransform    RobotTransformConfig     `yaml:"robot_transform"`
	AutoSend          AutoSendConfig           `yaml:"auto_send"`
	Mode              ModeConfig               `yaml:"mode"`
	Store             StoreConfig              `yaml:"store"`
}

// Snapshot is an immutable, validated view of the configuration. Consumers
// must not modify it; reload builds a new one.
type Snapshot struct {
	Document
	Path     string
	LoadedAt time.Time

	Table        *calibration.Table
	Detection    detection.Params
	SendInterval time.Duration
	PollInterval time.Duration
	StoreTimeout time.Duration
}

func defaults() Document {
	return Document{
		Camera: CameraConfig{Width: 640, Height: 480, HFOVDegree: 60, FOVCorrectionFactor: 1},
		EdgeDetection: EdgeConfig{
			GaussianBlurKernel: 5,
			CannyThreshold1:    50,
			CannyThreshold2:    150,
			MinContourArea:     500,
			MorphKernel:        5,
			MorphIterations:    2,
		},
		AxisDetection:  AxisConfig{Mode: "shortest", AngleToleranceDeg: 15},
		RobotTransform: RobotTransformConfig{BaseRoll: 180},
		AutoSend:       AutoSendConfig{SendIntervalSec: 3, DefaultZone: 2},
		Store:          StoreConfig{OrdersPath: "orders", PollIntervalMS: 500, TimeoutMS: 5000},
	}
}

// Load reads and validates a configuration file
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	snap, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	snap.Path = path
	debugMsg("CONFIG", fmt.Sprintf("Loaded from %s", path))
	return snap, nil
}

// Parse decodes a YAML (or JSON) document, applies environment overrides and builds a Snapshot
func Parse(data []byte) (*Snapshot, error) {
	doc := defaults()
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	ApplyEnv(&doc.Store)
	return build(doc)
}

func build(doc Document) (*Snapshot, error) {
	if err := validate(doc); err != nil {
		return nil, err
	}

	mode, err := detection.ParseAxisMode(doc.AxisDetection.Mode)
	if err != nil {
		return nil, err
	}

	table, err := buildTable(doc)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		Document: doc,
		LoadedAt: time.Now(),
		Table:    table,
		Detection: detection.Params{
			MinArea:        doc.EdgeDetection.MinContourArea,
			Mode:           mode,
			AngleTolerance: doc.AxisDetection.AngleToleranceDeg * math.Pi / 180,
		},
		SendInterval: time.Duration(doc.AutoSend.SendIntervalSec * float64(time.Second)),
		PollInterval: time.Duration(doc.Store.PollIntervalMS) * time.Millisecond,
		StoreTimeout: time.Duration(doc.Store.TimeoutMS) * time.Millisecond,
	}, nil
}

func validate(doc Document) error {
	var errs []error
	e := doc.EdgeDetection
	if e.GaussianBlurKernel <= 0 || e.GaussianBlurKernel%2 == 0 {
		errs = append(errs, fmt.Errorf("edge_detection.gaussian_blur_kernel must be odd and positive, got %d", e.GaussianBlurKernel))
	}
	if e.CannyThreshold1 < 0 || e.CannyThreshold2 < 0 {
		errs = append(errs, errors.New("edge_detection canny thresholds must be non-negative"))
	}
	if e.MorphKernel <= 0 {
		errs = append(errs, fmt.Errorf("edge_detection.morph_kernel must be positive, got %d", e.MorphKernel))
	}
	if e.MorphIterations < 0 {
		errs = append(errs, fmt.Errorf("edge_detection.morph_iterations must be non-negative, got %d", e.MorphIterations))
	}
	if doc.AxisDetection.AngleToleranceDeg <= 0 {
		errs = append(errs, errors.New("axis_detection.angle_tolerance_deg must be positive"))
	}
	if doc.AutoSend.SendIntervalSec <= 0 {
		errs = append(errs, errors.New("auto_send.send_interval_sec must be positive"))
	}
	if doc.Store.PollIntervalMS <= 0 {
		errs = append(errs, errors.New("store.poll_interval_ms must be positive"))
	}
	for key, v := range doc.ZoneAnswers {
		if len(v) != 6 {
			errs = append(errs, fmt.Errorf("zone_answers.%s must have 6 values (x,y,z,roll,pitch,yaw), got %d", key, len(v)))
		}
	}
	return errors.Join(errs...)
}

func buildTable(doc Document) (*calibration.Table, error) {
	t := &calibration.Table{
		Points:      make(map[int][]calibration.Point),
		Offsets:     make(map[int]calibration.ZoneOffset),
		Answers:     make(map[int]calibration.ZoneAnswer),
		DefaultZone: doc.AutoSend.DefaultZone,
		Base: calibration.Orientation{
			Roll:  doc.RobotTransform.BaseRoll,
			Pitch: doc.RobotTransform.BasePitch,
			Yaw:   doc.RobotTransform.BaseYaw,
		},
		FallbackZ: doc.RobotTransform.FallbackZ,
	}

	for key, pts := range doc.CalibrationPoints {
		zone, err := ParseZoneKey(key)
		if err != nil {
			return nil, fmt.Errorf("calibration_points: %w", err)
		}
		converted := make([]calibration.Point, len(pts))
		for i, p := range pts {
			converted[i] = calibration.Point{Name: p.Name, Pixel: p.Pixel, Robot: p.Robot}
		}
		t.Points[zone] = converted
	}
	for key, o := range doc.PixelCalibration {
		zone, err := ParseZoneKey(key)
		if err != nil {
			return nil, fmt.Errorf("pixel_calibration: %w", err)
		}
		t.Offsets[zone] = calibration.ZoneOffset{OffsetXCM: o.OffsetXCM, OffsetYCM: o.OffsetYCM, OffsetZCM: o.OffsetZCM}
	}
	for key, v := range doc.ZoneAnswers {
		zone, err := ParseZoneKey(key)
		if err != nil {
			return nil, fmt.Errorf("zone_answers: %w", err)
		}
		t.Answers[zone] = calibration.ZoneAnswer{X: v[0], Y: v[1], Z: v[2], Roll: v[3], Pitch: v[4], Yaw: v[5]}
	}

	if len(t.Points) > 0 {
		if _, ok := t.Points[t.DefaultZone]; !ok {
			return nil, fmt.Errorf("auto_send.default_zone %d has no calibration_points (zones: %v)", t.DefaultZone, t.Zones())
		}
	}
	return t, nil
}

// ParseZoneKey accepts "2", "zone2" or "sector2"
func ParseZoneKey(key string) (int, error) {
	trimmed := strings.TrimLeftFunc(strings.ToLower(strings.TrimSpace(key)), func(r rune) bool {
		return r < '0' || r > '9'
	})
	zone, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("invalid zone key %q", key)
	}
	return zone, nil
}

// Summary lists per-zone point counts and offsets for reload logging
func (s *Snapshot) Summary() []string {
	var lines []string
	zones := s.Table.Zones()
	for z := range s.Table.Offsets {
		if _, ok := s.Table.Points[z]; !ok {
			zones = append(zones, z)
		}
	}
	sort.Ints(zones)
	for _, z := range zones {
		o := s.Table.Offsets[z]
		lines = append(lines, fmt.Sprintf("Zone %d: %d points, offset X=%.2fcm Y=%.2fcm Z=%.2fcm",
			z, len(s.Table.Points[z]), o.OffsetXCM, o.OffsetYCM, o.OffsetZCM))
	}
	lines = append(lines, fmt.Sprintf("Base angles: Roll=%.2f Pitch=%.2f Yaw=%.2f | Interval %.1fs | Axis %s",
		s.Table.Base.Roll, s.Table.Base.Pitch, s.Table.Base.Yaw, s.SendInterval.Seconds(), s.Detection.Mode))
	return lines
}
