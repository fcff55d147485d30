package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tiltball/haptics"
	"tiltball/motion"
	"tiltball/sensor"
	"tiltball/spring"
)

var (
	simDuration time.Duration
	simPattern  string
	simWidth    float64
	simHeight   float64
	simEvery    time.Duration
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Play one session against a synthetic gyroscope and print the ball",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		pattern, err := patternByName(simPattern)
		if err != nil {
			return err
		}
		area := motion.AreaFromViewport(motion.Viewport{Width: simWidth, Height: simHeight}, motion.Insets{})
		rec := &haptics.Recorder{}
		score, err := simulate(cmd.Context(), cmd.OutOrStdout(), simConfig{
			Source:   sensor.NewSynthetic(pattern),
			Sink:     rec,
			Area:     area,
			Duration: simDuration,
			Every:    simEvery,
			Log:      log,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "score=%d haptics=%d\n", score, len(rec.Events()))
		return nil
	},
}

func init() {
	f := simulateCmd.Flags()
	f.DurationVar(&simDuration, "duration", 3*time.Second, "how long to play")
	f.StringVar(&simPattern, "pattern", "zigzag", "gyroscope pattern: flat, roll, pitch, zigzag")
	f.Float64Var(&simWidth, "width", 390, "viewport width")
	f.Float64Var(&simHeight, "height", 844, "viewport height")
	f.DurationVar(&simEvery, "every", 250*time.Millisecond, "print interval")
}

func patternByName(name string) (sensor.Pattern, error) {
	switch name {
	case "flat":
		return sensor.Flat(), nil
	case "roll":
		return sensor.Tilt(0, 2), nil
	case "pitch":
		return sensor.Tilt(2, 0), nil
	case "zigzag":
		return sensor.Sequence(
			sensor.Step{Count: 60, Sample: motion.OrientationSample{Y: 3, X: 1}},
			sensor.Step{Count: 30, Sample: motion.OrientationSample{Z: -motion.RestBiasZ}},
			sensor.Step{Count: 60, Sample: motion.OrientationSample{Y: -3, X: -1}},
		), nil
	}
	return nil, fmt.Errorf("unknown pattern %q", name)
}

type simConfig struct {
	Source   motion.SensorSource
	Sink     motion.FeedbackSink
	Area     motion.GameArea
	Duration time.Duration
	Every    time.Duration
	Log      *zap.Logger
}

// simulate runs one session for cfg.Duration, printing the rendered ball every
// cfg.Every, and returns the final score: one point per wall contact that got
// past the cooldown.
func simulate(ctx context.Context, out io.Writer, cfg simConfig) (int, error) {
	engine := spring.NewEngine(60)
	ctrl := motion.NewController(cfg.Source, motion.SpringSmoother(engine), cfg.Sink, cfg.Log)
	if err := ctrl.CheckAvailability(ctx); err != nil {
		return 0, err
	}
	sess, err := ctrl.NewSession(cfg.Area)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()
	go engine.Run(ctx)

	if err := ctrl.Start(sess); err != nil {
		return 0, err
	}
	defer ctrl.Stop(sess)

	every := cfg.Every
	if every <= 0 {
		every = 250 * time.Millisecond
	}
	printTick := time.NewTicker(every)
	defer printTick.Stop()
	frame := time.NewTicker(time.Second / 60)
	defer frame.Stop()

	touching := false
	for {
		select {
		case <-ctx.Done():
			return sess.Score(), nil
		case now := <-frame.C:
			hit := motion.TouchesEdge(sess.Area, sess.Rendered(), motion.EdgeEpsilon)
			if hit && !touching && ctrl.MaybeEmitFeedback(sess, now) {
				sess.AddScore(1)
			}
			touching = hit
		case <-printTick.C:
			p, tg := sess.Rendered(), sess.Target()
			fmt.Fprintf(out, "ball=(%.1f,%.1f) target=(%.1f,%.1f) score=%d\n", p.X, p.Y, tg.X, tg.Y, sess.Score())
		}
	}
}
