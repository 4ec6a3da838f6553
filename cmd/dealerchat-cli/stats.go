package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/floorservicemsk/dealerchat/internal/queue"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show request queue statistics from a running API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		url := fmt.Sprintf("http://%s:%d/api/v1/queue/stats", cfg.Server.Host, cfg.Server.Port)

		client := &http.Client{Timeout: 10 * time.Second}
		resp, err := client.Get(url)
		if err != nil {
			return fmt.Errorf("fetch stats from %s: %w", url, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("stats endpoint returned status %d", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		if outputJSON {
			_, err = os.Stdout.Write(append(body, '\n'))
			return err
		}

		var stats queue.Stats
		if err := json.Unmarshal(body, &stats); err != nil {
			return fmt.Errorf("decode stats: %w", err)
		}

		fmt.Printf("в очереди:        %d\n", stats.QueueLength)
		fmt.Printf("выполняется:      %d\n", stats.ActiveRequests)
		fmt.Printf("обработано:       %d\n", stats.TotalProcessed)
		fmt.Printf("ошибок:           %d\n", stats.TotalFailed)
		fmt.Printf("таймаутов:        %d\n", stats.TotalTimeout)
		fmt.Printf("ср. ожидание:     %.0f мс\n", stats.AvgWaitMs)
		fmt.Printf("ср. обработка:    %.0f мс\n", stats.AvgProcessMs)
		return nil
	},
}
