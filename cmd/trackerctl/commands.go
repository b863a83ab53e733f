package main

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"japan-tracker/internal/codec"
	"japan-tracker/internal/domain"
)

func newRootCmd() *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:           "trackerctl",
		Short:         "Encode, decode and inspect Japan tracker share tokens",
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logrus.SetOutput(cmd.ErrOrStderr())
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			} else {
				logrus.SetLevel(logrus.WarnLevel)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newEncodeCmd(), newDecodeCmd(), newRegionsCmd())
	return root
}

func newEncodeCmd() *cobra.Command {
	var baseURL string
	cmd := &cobra.Command{
		Use:   "encode [state.json|-]",
		Short: "Encode a state JSON object into a share token",
		Long: `Reads a JSON object mapping region codes (JP-01..JP-47) to statuses
(not-marked, to-visit, visited) and prints the share token.
Missing regions default to not-marked. With --base-url the full share URL is printed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			data, err := readInput(cmd, path)
			if err != nil {
				return err
			}
			state, err := domain.ParseTrackerState(data)
			if err != nil {
				return err
			}
			token, err := codec.Encode(state)
			if err != nil {
				return err
			}
			logrus.Debugf("encoded %d bytes of state into %d token chars", len(data), len(token))

			if baseURL == "" {
				fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			}
			shareURL, err := codec.BuildShareURL(baseURL, token)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), shareURL)
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "", "print a share URL built on this absolute base URL")
	return cmd
}

func newDecodeCmd() *cobra.Command {
	var showProgress bool
	cmd := &cobra.Command{
		Use:   "decode <token|share-url>",
		Short: "Decode a share token (or a share URL) into canonical state JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := tokenFromArg(args[0])
			if err != nil {
				return err
			}
			state, err := codec.Decode(token)
			if err != nil {
				var decodeErr *codec.DecodeError
				if errors.As(err, &decodeErr) {
					logrus.WithField("stage", decodeErr.Stage).Debug("share token rejected")
				}
				return err
			}
			text, err := state.MarshalCanonical()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, string(text))
			if showProgress {
				p := state.Progress()
				fmt.Fprintf(out, "visited %d/%d (%d%%), to-visit %d, not-marked %d\n",
					p.Visited, p.Total, p.Percentage, p.ToVisit, p.NotMarked)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&showProgress, "progress", "p", false, "also print visit progress")
	return cmd
}

func newRegionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "regions",
		Short: "List the 47 prefectures in display order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, r := range domain.AllRegions() {
				fmt.Fprintf(out, "%s\t%s\t%s\n", r.ID, r.Name, r.NameJa)
			}
			return nil
		},
	}
}

// tokenFromArg 接受裸令牌或带 state 参数的完整链接
func tokenFromArg(arg string) (string, error) {
	if !strings.Contains(arg, "://") {
		return arg, nil
	}
	u, err := url.Parse(arg)
	if err != nil {
		return "", fmt.Errorf("invalid share url: %w", err)
	}
	token := u.Query().Get(codec.ShareParam)
	if token == "" {
		return "", fmt.Errorf("share url has no %q parameter", codec.ShareParam)
	}
	return token, nil
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
