package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check arbitrage engine status",
	Long: `Check the current status of the arbitrage engine including system
health, opportunity statistics, and reserved capital.`,
	RunE: runStatus,
}

var (
	jsonOutput    bool
	watchMode     bool
	watchInterval time.Duration
)

// EngineStatus is the combined health and stats view shown by the command
type EngineStatus struct {
	Status           string     `json:"status"`
	Uptime           string     `json:"uptime"`
	Timestamp        time.Time  `json:"timestamp"`
	WebSocketClients int        `json:"websocket_clients"`
	Stats            *StatsView `json:"stats,omitempty"`
	ReservedCapital  float64    `json:"reserved_capital"`
}

// StatsView mirrors the /api/v1/stats opportunity summary
type StatsView struct {
	TotalOpportunities int       `json:"total_opportunities"`
	AverageProfit      float64   `json:"average_profit"`
	LastUpdate         time.Time `json:"last_update"`
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "output in JSON format")
	statusCmd.Flags().BoolVarP(&watchMode, "watch", "w", false, "watch mode (continuous updates)")
	statusCmd.Flags().DurationVar(&watchInterval, "interval", 5*time.Second, "watch interval duration")
}

func runStatus(cmd *cobra.Command, args []string) error {
	if watchMode {
		return runWatchStatus()
	}

	status, err := getEngineStatus()
	if err != nil {
		return fmt.Errorf("failed to get engine status: %w", err)
	}

	if jsonOutput {
		return outputJSON(status)
	}

	return outputFormatted(status)
}

func runWatchStatus() error {
	fmt.Printf("📊 Watching Arbitrage Engine status (interval: %v)\n", watchInterval)
	fmt.Println("Press Ctrl+C to stop watching...")
	fmt.Println()

	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	// Show initial status
	if err := showCurrentStatus(); err != nil {
		return err
	}

	for range ticker.C {
		fmt.Print("\033[H\033[2J") // Clear screen
		if err := showCurrentStatus(); err != nil {
			return err
		}
	}
	return nil
}

func showCurrentStatus() error {
	status, err := getEngineStatus()
	if err != nil {
		fmt.Printf("❌ Error: %v\n", err)
		return nil
	}

	return outputFormatted(status)
}

func getEngineStatus() (*EngineStatus, error) {
	apiHost := viper.GetString("server.host")
	if apiHost == "" || apiHost == "0.0.0.0" {
		apiHost = "localhost"
	}
	apiPort := viper.GetInt("server.port")
	if apiPort == 0 {
		apiPort = 8080
	}

	base := fmt.Sprintf("http://%s:%d", apiHost, apiPort)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(base + "/health")
	if err != nil {
		// Engine might not be running
		return &EngineStatus{
			Status:    "offline",
			Timestamp: time.Now(),
		}, nil
	}
	defer resp.Body.Close()

	var status EngineStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode health response: %w", err)
	}

	// Stats are best-effort; a failing stats endpoint still yields health
	if statsResp, err := client.Get(base + "/api/v1/stats"); err == nil {
		defer statsResp.Body.Close()
		var payload struct {
			Stats           *StatsView `json:"stats"`
			ReservedCapital float64    `json:"reserved_capital"`
		}
		if err := json.NewDecoder(statsResp.Body).Decode(&payload); err == nil {
			status.Stats = payload.Stats
			status.ReservedCapital = payload.ReservedCapital
		}
	}

	return &status, nil
}

func outputJSON(status *EngineStatus) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(status)
}

func outputFormatted(status *EngineStatus) error {
	fmt.Printf("🎯 Arbitrage Engine Status\n")
	fmt.Printf("==========================\n\n")

	// Status indicator
	statusIcon := "❌"
	if status.Status == "healthy" {
		statusIcon = "✅"
	}

	fmt.Printf("Status:      %s %s\n", statusIcon, status.Status)
	if status.Uptime != "" {
		fmt.Printf("Uptime:      %s\n", status.Uptime)
	}
	fmt.Printf("Timestamp:   %s\n", status.Timestamp.Format(time.RFC3339))
	fmt.Printf("WS Clients:  %d\n", status.WebSocketClients)

	if status.Stats != nil {
		fmt.Printf("\n📈 Opportunity Stats\n")
		fmt.Printf("-------------------\n")
		fmt.Printf("Total Opportunities:  %d\n", status.Stats.TotalOpportunities)
		fmt.Printf("Average Profit:       $%.2f\n", status.Stats.AverageProfit)
		if !status.Stats.LastUpdate.IsZero() {
			fmt.Printf("Last Detection:       %s\n", status.Stats.LastUpdate.Format(time.RFC3339))
		}
	}

	fmt.Printf("\n💰 Reserved Capital:   $%.2f\n", status.ReservedCapital)

	return nil
}
