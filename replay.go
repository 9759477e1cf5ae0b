package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Meander-Cloud/go-neuron/tap"
)

const replayDrainPoll = 50 * time.Millisecond

func replayCmd() *cobra.Command {
	var (
		nf      neuronFlags
		tapPath string
		speed   float64
	)

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Send the outbound values of a tap file to the bus",
		RunE: func(cmd *cobra.Command, args []string) error {
			if tapPath == "" {
				return fmt.Errorf("--tap is required")
			}
			if speed < 0 {
				return fmt.Errorf("invalid speed=%v", speed)
			}

			n, err := nf.resolve()
			if err != nil {
				return err
			}

			f, err := os.Open(tapPath)
			if err != nil {
				return fmt.Errorf("failed to open tap file %s: %w", tapPath, err)
			}
			defer f.Close()

			s, err := newSession(n, "", "")
			if err != nil {
				return err
			}
			defer s.close()

			err = s.c.Start()
			if err != nil {
				return err
			}

			sigch := make(chan os.Signal, 1)
			signal.Notify(sigch, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigch)

			sent, err := replay(s, tap.NewReader(f), speed, sigch)
			if err != nil {
				return err
			}
			log.Printf("%s: replayed %d values, draining", s.logPrefix, sent)

			ticker := time.NewTicker(replayDrainPoll)
			defer ticker.Stop()
			for s.c.QueueLen() > 0 || !s.c.Connected() {
				select {
				case sig := <-sigch:
					log.Printf("%s: received signal %s, exiting", s.logPrefix, sig.String())
					return nil
				case <-ticker.C:
				}
			}

			return nil
		},
	}

	nf.register(cmd)
	cmd.Flags().StringVarP(&tapPath, "tap", "t", "", "Tap file written by run --record")
	cmd.Flags().Float64Var(&speed, "speed", 1, "Playback speed relative to the recording, 0 sends without pacing")

	return cmd
}

// replay paces outbound records by their recorded spacing divided by speed.
func replay(s *session, r *tap.Reader, speed float64, sigch <-chan os.Signal) (int, error) {
	sent := 0
	var prev int64

	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return sent, nil
		}
		if err != nil {
			return sent, err
		}

		if rec.Direction != tap.DirectionOutbound {
			continue
		}

		if speed > 0 && prev != 0 && rec.Txtime > prev {
			wait := time.Duration(float64(time.Duration(rec.Txtime-prev)*time.Millisecond) / speed)
			select {
			case sig := <-sigch:
				log.Printf("%s: received signal %s, stopping replay", s.logPrefix, sig.String())
				return sent, nil
			case <-time.After(wait):
			}
		}
		prev = rec.Txtime

		err = s.c.Send(rec.Name, rec.Value)
		if err != nil {
			log.Printf("%s: failed to send %s, err=%s", s.logPrefix, rec.Message().String(), err.Error())
			continue
		}
		sent++
	}
}
