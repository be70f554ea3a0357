package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/jgoulah/gridflex/internal/config"
	"github.com/jgoulah/gridflex/pkg/models"
)

// ErrNoSinks is returned when neither MQTT nor Home Assistant is enabled
var ErrNoSinks = errors.New("no publish target enabled: configure mqtt or home_assistant")

// Publisher sends stored analyses to MQTT and/or Home Assistant
type Publisher struct {
	client      mqtt.Client
	topicPrefix string
	haConfig    config.HAConfig
	httpClient  *http.Client
	logger      *zap.Logger
}

// New creates a new publisher. At least one sink must be enabled.
func New(mqttCfg config.MQTTConfig, haCfg config.HAConfig, logger *zap.Logger) (*Publisher, error) {
	if !mqttCfg.Enabled && !haCfg.Enabled {
		return nil, ErrNoSinks
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if haCfg.Enabled {
		if haCfg.URL == "" {
			return nil, fmt.Errorf("Home Assistant URL is required when enabled")
		}
		if haCfg.Token == "" {
			return nil, fmt.Errorf("Home Assistant token is required when enabled")
		}
		if haCfg.EntityID == "" {
			return nil, fmt.Errorf("Home Assistant entity_id is required when enabled")
		}
	}

	p := &Publisher{
		topicPrefix: mqttCfg.GetTopicPrefix(),
		haConfig:    haCfg,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		logger:      logger.Named("publisher"),
	}

	if mqttCfg.Enabled {
		if mqttCfg.Broker == "" {
			return nil, fmt.Errorf("MQTT broker address is required when enabled")
		}

		opts := mqtt.NewClientOptions()
		opts.AddBroker(fmt.Sprintf("tcp://%s", mqttCfg.Broker))
		opts.SetClientID(mqttCfg.GetClientID())
		opts.SetAutoReconnect(true)
		opts.SetConnectRetry(true)
		opts.SetConnectTimeout(10 * time.Second)

		if mqttCfg.Username != "" {
			opts.SetUsername(mqttCfg.Username)
		}
		if mqttCfg.Password != "" {
			opts.SetPassword(mqttCfg.Password)
		}

		p.client = mqtt.NewClient(opts)
		if token := p.client.Connect(); token.Wait() && token.Error() != nil {
			return nil, fmt.Errorf("connecting to MQTT broker: %w", token.Error())
		}
		p.logger.Info("connected to MQTT broker", zap.String("broker", mqttCfg.Broker))
	}

	return p, nil
}

// Message is the JSON document published for an analysis
type Message struct {
	ID             string                    `json:"id"`
	Company        string                    `json:"company"`
	K              int                       `json:"k"`
	FlexibilityPct float64                   `json:"flexibility_pct"`
	Median         float64                   `json:"median"`
	MAD            float64                   `json:"mad"`
	Lower          float64                   `json:"lower"`
	Upper          float64                   `json:"upper"`
	AdjustedMean   float64                   `json:"adjusted_mean"`
	InBand         int                       `json:"in_band"`
	Months         []models.MonthlyAggregate `json:"months,omitempty"`
	CreatedAt      time.Time                 `json:"created_at"`
}

// NewMessage builds the published document for a
func NewMessage(a models.Analysis) Message {
	return Message{
		ID:             a.ID,
		Company:        a.Company,
		K:              a.Band.K,
		FlexibilityPct: a.Band.FlexibilityPct,
		Median:         a.Band.Median,
		MAD:            a.Band.MAD,
		Lower:          a.Band.Lower,
		Upper:          a.Band.Upper,
		AdjustedMean:   a.Band.AdjustedMean,
		InBand:         a.Band.InBand,
		Months:         a.Months,
		CreatedAt:      a.CreatedAt,
	}
}

// HAPayload is the body of a Home Assistant state update
type HAPayload struct {
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
}

// Topic returns the MQTT topic for a company's flexibility estimate
func Topic(prefix, company string) string {
	return fmt.Sprintf("%s/%s/flexibility", prefix, Slug(company))
}

// Slug lowercases name and replaces every run of characters other than
// letters and digits with a single underscore
func Slug(name string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}

// Publish sends an analysis to every enabled sink
func (p *Publisher) Publish(ctx context.Context, a models.Analysis) error {
	if p.client != nil {
		if err := p.publishMQTT(a); err != nil {
			return err
		}
	}
	if p.haConfig.Enabled {
		if err := p.publishHA(ctx, a); err != nil {
			return err
		}
	}
	p.logger.Debug("published analysis",
		zap.String("id", a.ID),
		zap.String("company", a.Company),
		zap.Float64("flexibility_pct", a.Band.FlexibilityPct))
	return nil
}

func (p *Publisher) publishMQTT(a models.Analysis) error {
	body, err := json.Marshal(NewMessage(a))
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}

	topic := Topic(p.topicPrefix, a.Company)
	token := p.client.Publish(topic, 1, true, body)
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("publishing to %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

func (p *Publisher) publishHA(ctx context.Context, a models.Analysis) error {
	apiURL := fmt.Sprintf("%s/api/states/%s", strings.TrimRight(p.haConfig.URL, "/"), p.haConfig.EntityID)

	payload := HAPayload{
		State: fmt.Sprintf("%.2f", a.Band.FlexibilityPct),
		Attributes: map[string]any{
			"unit_of_measurement": "%",
			"friendly_name":       a.Company + " flexibility",
			"company":             a.Company,
			"k":                   a.Band.K,
			"median":              a.Band.Median,
			"lower":               a.Band.Lower,
			"upper":               a.Band.Upper,
			"adjusted_mean":       a.Band.AdjustedMean,
			"analysis_id":         a.ID,
			"computed_at":         a.CreatedAt.Format(time.RFC3339),
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+p.haConfig.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		// Read error response body for debugging
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP error: status %d, response: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// Close disconnects from the MQTT broker
func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
