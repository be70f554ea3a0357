package publisher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jgoulah/gridflex/internal/config"
	"github.com/jgoulah/gridflex/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Acme", "acme"},
		{"Acme Energia S.A.", "acme_energia_s_a"},
		{"  Cia. Elétrica / Norte #2 ", "cia_elétrica_norte_2"},
		{"+#/", "unknown"},
		{"", "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slug(tt.in), tt.in)
	}
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "gridflex/acme_energia/flexibility", Topic("gridflex", "ACME Energia"))
}

func TestNewRequiresSink(t *testing.T) {
	_, err := New(config.MQTTConfig{}, config.HAConfig{}, nil)
	assert.ErrorIs(t, err, ErrNoSinks)

	_, err = New(config.MQTTConfig{}, config.HAConfig{Enabled: true, URL: "http://ha"}, nil)
	assert.Error(t, err)

	_, err = New(config.MQTTConfig{Enabled: true}, config.HAConfig{}, nil)
	assert.Error(t, err)
}

func TestPublishHomeAssistant(t *testing.T) {
	var gotPath, gotAuth string
	var got HAPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	p, err := New(config.MQTTConfig{}, config.HAConfig{
		Enabled: true, URL: srv.URL + "/", Token: "secret", EntityID: "sensor.acme_flexibility",
	}, nil)
	require.NoError(t, err)
	defer p.Close()

	a := models.Analysis{
		ID:        "abc",
		Company:   "Acme",
		Band:      models.OutlierBand{K: 2, Median: 12, FlexibilityPct: 25.004},
		CreatedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.Publish(context.Background(), a))

	assert.Equal(t, "/api/states/sensor.acme_flexibility", gotPath)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "25.00", got.State)
	assert.Equal(t, "Acme", got.Attributes["company"])
	assert.Equal(t, "%", got.Attributes["unit_of_measurement"])
	assert.Equal(t, "abc", got.Attributes["analysis_id"])
}

func TestPublishHomeAssistantError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	p, err := New(config.MQTTConfig{}, config.HAConfig{
		Enabled: true, URL: srv.URL, Token: "bad", EntityID: "sensor.x",
	}, nil)
	require.NoError(t, err)

	err = p.Publish(context.Background(), models.Analysis{Company: "Acme"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestNewMessage(t *testing.T) {
	a := models.Analysis{
		ID:      "abc",
		Company: "Acme",
		Band:    models.OutlierBand{K: 3, FlexibilityPct: 12.5, InBand: 4},
		Months: []models.MonthlyAggregate{
			{Month: models.Month{Year: 2024, Month: time.January}, Consumption: 10},
		},
	}
	msg := NewMessage(a)
	assert.Equal(t, 3, msg.K)
	assert.Equal(t, 12.5, msg.FlexibilityPct)

	body, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"month":"2024.01"`)
}
