package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/commontoolsinc/memory/pkg/address"
	"github.com/commontoolsinc/memory/pkg/fact"
	"github.com/commontoolsinc/memory/pkg/notify"
	"github.com/commontoolsinc/memory/pkg/wire"
	"github.com/spf13/cobra"
)

var spaceCmd = &cobra.Command{
	Use:   "space",
	Short: "Read, write, and watch facts in a space",
}

func init() {
	spaceCmd.AddCommand(spaceReadCmd)
	spaceCmd.AddCommand(spaceWriteCmd)
	spaceCmd.AddCommand(spaceWatchCmd)
}

var spaceReadCmd = &cobra.Command{
	Use:   "read SPACE ENTITY TYPE [PATH...]",
	Short: "Read the value at an address",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		addr := address.New(fact.Space(args[0]), fact.Entity(args[1]), fact.MediaType(args[2]), args[3:]...)

		if !strings.HasPrefix(string(addr.Entity), "data:") {
			access, err := s.Replica(addr.Space)
			if err != nil {
				return fmt.Errorf("opening replica for %s: %w", addr.Space, err)
			}
			sel := wire.Selector{Of: []fact.Entity{addr.Entity}, The: addr.Type}
			if err := access.Pull(cmd.Context(), sel); err != nil {
				return fmt.Errorf("pulling %s: %w", addr.Entity, err)
			}
		}

		tx := s.NewTransaction("")
		v, err := tx.Read(addr)
		if err != nil {
			return fmt.Errorf("read %s: %w", addr.Path, err)
		}

		return printJSON(cmd.OutOrStdout(), v)
	},
}

var spaceWriteCmd = &cobra.Command{
	Use:   "write SPACE ENTITY TYPE VALUE [PATH...]",
	Short: "Write a JSON value and commit it",
	Args:  cobra.MinimumNArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		var value any
		if err := json.Unmarshal([]byte(args[3]), &value); err != nil {
			return fmt.Errorf("VALUE is not valid JSON: %w", err)
		}

		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		addr := address.New(fact.Space(args[0]), fact.Entity(args[1]), fact.MediaType(args[2]), args[4:]...)

		tx := s.NewTransaction("")
		if err := tx.Write(addr, value); err != nil {
			return fmt.Errorf("write %s: %w", addr.Path, err)
		}
		commit, err := tx.Commit(cmd.Context())
		if err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "committed at version %d\n", commit.Version)
		return nil
	},
}

var spaceWatchCmd = &cobra.Command{
	Use:   "watch SPACE",
	Short: "Tail the notification stream for a space until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		space := fact.Space(args[0])

		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		// A watch needs at least one live replica subscription to have
		// anything to tail.
		if _, err := s.Replica(space); err != nil {
			return fmt.Errorf("opening replica for %s: %w", space, err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		done := make(chan struct{})
		sub := s.Relay().Subscribe(func(n notify.Notification) notify.Result {
			if n.Space != space {
				return notify.Result{}
			}
			printNotification(out, n)
			return notify.Result{}
		})
		defer s.Relay().Unsubscribe(sub)

		fmt.Fprintf(os.Stderr, "watching %s, press ctrl-c to stop\n", space)
		go func() {
			<-ctx.Done()
			close(done)
		}()
		<-done
		return nil
	},
}

func printNotification(w io.Writer, n notify.Notification) {
	type change struct {
		Address address.Address `json:"address"`
		Before  fact.JsonValue   `json:"before"`
		After   fact.JsonValue   `json:"after"`
	}
	line := struct {
		Kind    notify.Kind `json:"kind"`
		Space   fact.Space  `json:"space"`
		Source  string      `json:"source,omitempty"`
		Reason  string      `json:"reason,omitempty"`
		Changes []change    `json:"changes,omitempty"`
	}{
		Kind:   n.Kind,
		Space:  n.Space,
		Source: n.Source,
		Reason: n.Reason,
	}
	for _, c := range n.Changes {
		line.Changes = append(line.Changes, change{Address: c.Address, Before: c.Before, After: c.After})
	}
	b, err := json.Marshal(line)
	if err != nil {
		fmt.Fprintln(os.Stderr, "storagectl: failed to encode notification:", err)
		return
	}
	fmt.Fprintln(w, string(b))
}

func printJSON(w io.Writer, v fact.JsonValue) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	fmt.Fprintln(w, string(b))
	return nil
}
