package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/md-rashed-zaman/meetslot/libs/grpcx"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func newOffsetCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "offset <timezone>...",
		Short: "Print the UTC offset of each timezone at noon on a date",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := time.Parse("2006-01-02", date)
			if err != nil {
				return fmt.Errorf("invalid --date %q: expected YYYY-MM-DD", date)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, id := range args {
				loc, err := time.LoadLocation(id)
				if err != nil || id == "" || id == "Local" {
					fmt.Fprintf(w, "%s\tinvalid\n", id)
					continue
				}
				noon := time.Date(day.Year(), day.Month(), day.Day(), 12, 0, 0, 0, loc)
				name, _ := noon.Zone()
				fmt.Fprintf(w, "%s\t%s\t%s\n", id, noon.Format("-07:00"), name)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&date, "date", time.Now().UTC().Format("2006-01-02"), "civil date (YYYY-MM-DD)")
	return cmd
}

type slot struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	LocationTag string    `json:"locationTag"`
}

type slotsResponse struct {
	Date         string `json:"date"`
	HostTimezone string `json:"hostTimezone"`
	Slots        []slot `json:"slots"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func newSlotsCmd() *cobra.Command {
	var (
		date      string
		zone      string
		duration  int
		timeOfDay string
	)
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "List bookable slots for a date in a visitor timezone",
		RunE: func(cmd *cobra.Command, _ []string) error {
			baseURL, _ := cmd.Flags().GetString("base-url")
			timeout, _ := cmd.Flags().GetDuration("timeout")
			loc, err := time.LoadLocation(zone)
			if err != nil {
				return fmt.Errorf("invalid --timezone %q", zone)
			}

			q := url.Values{}
			q.Set("date", date)
			q.Set("timezone", zone)
			if duration > 0 {
				q.Set("duration", fmt.Sprint(duration))
			}
			if timeOfDay != "" {
				q.Set("time_of_day", timeOfDay)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			resp, err := fetchSlots(ctx, strings.TrimRight(baseURL, "/")+"/api/v1/public/slots?"+q.Encode())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s  host=%s  %d slot(s)\n", resp.Date, resp.HostTimezone, len(resp.Slots))
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, s := range resp.Slots {
				fmt.Fprintf(w, "%s\t%s\t%s\n", s.Start.In(loc).Format("15:04"), s.End.In(loc).Format("15:04"), s.LocationTag)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&date, "date", time.Now().Format("2006-01-02"), "visitor civil date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&zone, "timezone", "UTC", "visitor timezone")
	cmd.Flags().IntVar(&duration, "duration", 0, "meeting length in minutes (service default when 0)")
	cmd.Flags().StringVar(&timeOfDay, "time-of-day", "", "morning, afternoon or all")
	return cmd
}

func fetchSlots(ctx context.Context, target string) (slotsResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return slotsResponse{}, err
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return slotsResponse{}, err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return slotsResponse{}, err
	}
	if res.StatusCode != http.StatusOK {
		var e errorBody
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return slotsResponse{}, fmt.Errorf("%s: %s", e.Error, e.Message)
		}
		return slotsResponse{}, fmt.Errorf("unexpected status %d", res.StatusCode)
	}
	var out slotsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return slotsResponse{}, err
	}
	return out, nil
}

func newHealthCmd() *cobra.Command {
	var (
		addr    string
		service string
	)
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Query the gRPC health service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			timeout, _ := cmd.Flags().GetDuration("timeout")
			conn, err := grpcx.Dial(addr, grpcx.DialOptions{})
			if err != nil {
				return err
			}
			defer conn.Close()
			status, err := grpcx.CheckHealth(cmd.Context(), conn, service, timeout)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), status.String())
			if status != healthpb.HealthCheckResponse_SERVING {
				return fmt.Errorf("%s is %s", addr, status)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", getenv("GRPC_ADDR", "localhost:9083"), "gRPC address")
	cmd.Flags().StringVar(&service, "service", "meetslot.booking", "health service name (empty for the whole server)")
	return cmd
}

func newHashPasswordCmd() *cobra.Command {
	var cost int
	cmd := &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print a bcrypt hash for ADMIN_PASSWORD_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), cost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(hash))
			return nil
		},
	}
	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")
	return cmd
}
