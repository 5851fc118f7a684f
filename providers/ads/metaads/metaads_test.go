package metaads

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseboard/pulse/pkg/period"
)

var week = period.Range{
	Start: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2024, 5, 8, 0, 0, 0, 0, time.UTC),
}

func TestIsConfigured(t *testing.T) {
	t.Setenv(EnvAccessToken, "token")
	t.Setenv(EnvAdAccountID, "")
	assert.False(t, IsConfigured())

	t.Setenv(EnvAdAccountID, "12345")
	assert.True(t, IsConfigured())
}

func TestCampaignSpend_FollowsPaging(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/act_12345/insights", r.URL.Path)
		if r.URL.Query().Get("after") == "" {
			assert.Equal(t, "campaign", r.URL.Query().Get("level"))
			assert.Equal(t, `{"since":"2024-05-01","until":"2024-05-07"}`, r.URL.Query().Get("time_range"))
			assert.Equal(t, "secret", r.URL.Query().Get("access_token"))
			fmt.Fprintf(w, `{"data":[{"campaign_id":"1","campaign_name":"Spring","spend":"12.50","impressions":"900","clicks":"30","account_currency":"EUR"}],
				"paging":{"next":"%s/act_12345/insights?after=c1"}}`, server.URL)
			return
		}
		fmt.Fprint(w, `{"data":[{"campaign_id":"2","campaign_name":"Retarget","spend":"40.25","impressions":"1200","clicks":"","account_currency":"EUR"}],"paging":{}}`)
	}))
	defer server.Close()

	p, err := New(Config{AccessToken: "secret", AdAccountID: "12345", BaseURL: server.URL})
	require.NoError(t, err)

	spend, err := p.CampaignSpend(context.Background(), week)
	require.NoError(t, err)
	require.Len(t, spend, 2)

	assert.Equal(t, "Retarget", spend[0].CampaignName)
	assert.InDelta(t, 40.25, spend[0].Spend, 1e-9)
	assert.Equal(t, int64(0), spend[0].Clicks)
	assert.Equal(t, "Spring", spend[1].CampaignName)
	assert.InDelta(t, 30.0/900.0, spend[1].CTR(), 1e-9)
	assert.Equal(t, "EUR", spend[1].Currency)
}

func TestCampaignSpend_BadNumber(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"campaign_id":"1","spend":"lots"}]}`)
	}))
	defer server.Close()

	p, err := New(Config{AccessToken: "secret", AdAccountID: "act_1", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = p.CampaignSpend(context.Background(), week)
	assert.ErrorContains(t, err, "campaign 1 spend")
}

func TestCampaignSpend_Empty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[]}`)
	}))
	defer server.Close()

	p, err := New(Config{AccessToken: "secret", AdAccountID: "act_1", BaseURL: server.URL})
	require.NoError(t, err)

	spend, err := p.CampaignSpend(context.Background(), week)
	require.NoError(t, err)
	assert.NotNil(t, spend)
	assert.Empty(t, spend)
}
