package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/viper"
)

// Config holds configuration for the TUI monitor
type Config struct {
	RefreshRate int
	CompactMode bool
	Debug       bool
}

// Model represents the TUI application state
type Model struct {
	config     Config
	status     *EngineStatus
	loading    bool
	error      error
	width      int
	height     int
	lastUpdate time.Time
}

// EngineStatus combines the health and stats endpoints into one view
type EngineStatus struct {
	Status           string    `json:"status"`
	Uptime           string    `json:"uptime"`
	Timestamp        time.Time `json:"timestamp"`
	WebSocketClients int       `json:"websocket_clients"`
	Stats            *Stats    `json:"stats,omitempty"`
	ReservedCapital  float64   `json:"reserved_capital"`
}

// Stats mirrors the /api/v1/stats opportunity summary
type Stats struct {
	TotalOpportunities int       `json:"total_opportunities"`
	AverageProfit      float64   `json:"average_profit"`
	LastUpdate         time.Time `json:"last_update"`
}

// tickMsg is sent when the refresh timer ticks
type tickMsg time.Time

// statusMsg is sent when status is updated
type statusMsg *EngineStatus

// errorMsg is sent when an error occurs
type errorMsg error

// StartMonitor starts the TUI monitor application
func StartMonitor(config Config) error {
	p := tea.NewProgram(initialModel(config), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func initialModel(config Config) Model {
	return Model{
		config:  config,
		loading: true,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		fetchStatus(),
		tickCmd(m.config.RefreshRate),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			// Manual refresh
			return m, fetchStatus()
		}

	case tickMsg:
		return m, tea.Batch(
			fetchStatus(),
			tickCmd(m.config.RefreshRate),
		)

	case statusMsg:
		m.status = msg
		m.loading = false
		m.error = nil
		m.lastUpdate = time.Now()
		return m, nil

	case errorMsg:
		m.error = msg
		m.loading = false
		return m, nil
	}

	return m, nil
}

func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	// Define styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FAFAFA")).
		Background(lipgloss.Color("#7D56F4")).
		Padding(0, 1)

	contentStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#874BFD")).
		Padding(1, 2)

	var content string

	// Title
	title := titleStyle.Width(m.width - 2).Render("🎯 Arbitrage Engine Monitor")
	content += title + "\n\n"

	// Instructions
	instructions := "Press 'r' to refresh manually, 'q' to quit"
	content += lipgloss.NewStyle().Faint(true).Render(instructions) + "\n\n"

	// Status content
	if m.error != nil {
		errorStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)
		content += errorStyle.Render(fmt.Sprintf("❌ Error: %v", m.error)) + "\n"
	} else if m.loading {
		content += "🔄 Loading status...\n"
	} else if m.status != nil {
		content += m.renderStatus()
	}

	// Last update time
	if !m.lastUpdate.IsZero() {
		updateTime := fmt.Sprintf("Last updated: %s", m.lastUpdate.Format("15:04:05"))
		content += "\n" + lipgloss.NewStyle().Faint(true).Render(updateTime)
	}

	// Wrap content in border
	return contentStyle.Width(m.width - 4).Render(content)
}

func (m Model) renderStatus() string {
	var content string

	// Status indicator
	statusIcon := "❌"
	statusColor := lipgloss.Color("#FF0000")
	if m.status.Status == "healthy" {
		statusIcon = "✅"
		statusColor = lipgloss.Color("#00FF00")
	}

	statusStyle := lipgloss.NewStyle().Foreground(statusColor).Bold(true)
	content += fmt.Sprintf("Status: %s %s\n", statusIcon, statusStyle.Render(m.status.Status))

	if m.status.Uptime != "" {
		content += fmt.Sprintf("Uptime: %s\n", m.status.Uptime)
	}
	content += fmt.Sprintf("WebSocket Clients: %d\n", m.status.WebSocketClients)

	if m.status.Stats != nil {
		content += "\n📈 Opportunity Stats\n"
		content += "───────────────────\n"
		content += fmt.Sprintf("Total Opportunities: %d\n", m.status.Stats.TotalOpportunities)
		content += fmt.Sprintf("Average Profit:      $%.2f\n", m.status.Stats.AverageProfit)
		if !m.status.Stats.LastUpdate.IsZero() {
			content += fmt.Sprintf("Last Detection:      %s\n", m.status.Stats.LastUpdate.Format("15:04:05"))
		}
	}

	content += fmt.Sprintf("\n💰 Reserved Capital:  $%.2f\n", m.status.ReservedCapital)

	return content
}

func fetchStatus() tea.Cmd {
	return func() tea.Msg {
		status, err := getEngineStatus()
		if err != nil {
			return errorMsg(err)
		}
		return statusMsg(status)
	}
}

func tickCmd(refreshRate int) tea.Cmd {
	return tea.Tick(time.Duration(refreshRate)*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func getEngineStatus() (*EngineStatus, error) {
	base := apiBaseURL()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var status EngineStatus
	if err := getJSON(ctx, base+"/health", &status); err != nil {
		// Engine might not be running
		return &EngineStatus{
			Status:    "offline",
			Timestamp: time.Now(),
		}, nil
	}

	var stats struct {
		Stats           *Stats  `json:"stats"`
		ReservedCapital float64 `json:"reserved_capital"`
	}
	if err := getJSON(ctx, base+"/api/v1/stats", &stats); err == nil {
		status.Stats = stats.Stats
		status.ReservedCapital = stats.ReservedCapital
	}

	return &status, nil
}

func apiBaseURL() string {
	apiHost := viper.GetString("server.host")
	if apiHost == "" || apiHost == "0.0.0.0" {
		apiHost = "localhost"
	}
	apiPort := viper.GetInt("server.port")
	if apiPort == 0 {
		apiPort = 8080
	}
	return fmt.Sprintf("http://%s:%d", apiHost, apiPort)
}

func getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
