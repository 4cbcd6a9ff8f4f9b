package parser

import (
	"testing"
	"time"

	"github.com/couchcryptid/bmkg-relay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseActiveAlerts(t *testing.T) {
	alerts, err := ParseActiveAlerts(readFixture(t, "nowcast_rss_id.xml"))
	require.NoError(t, err)
	require.Len(t, alerts, 2)

	assert.Equal(t, "CBT20260216004", alerts[0].AlertCode)
	assert.Equal(t, "CBT", alerts[0].ProvinceCode)
	assert.Equal(t, "Banten", alerts[0].Province)
	assert.Equal(t, time.Date(2026, 2, 16, 15, 50, 0, 0, time.UTC), alerts[0].PublishedAt)
	assert.Equal(t, "CJG", alerts[1].ProvinceCode)
	assert.Equal(t, "Jawa Tengah", alerts[1].Province)
}

func TestParseActiveAlerts_English(t *testing.T) {
	alerts, err := ParseActiveAlerts(readFixture(t, "nowcast_rss_en.xml"))
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "CBT20260216004", alerts[0].AlertCode)
	assert.Equal(t, "CBT", alerts[0].ProvinceCode)
	assert.Equal(t, "Banten", alerts[0].Province)
}

func TestParseActiveAlerts_TruncatesAndDedupes(t *testing.T) {
	long := make([]rune, 250)
	for i := range long {
		long[i] = 'é'
	}
	item := `<item><title>Hujan di Aceh</title><link>https://x.test/id/CAC20260216001_alert.xml</link>
<description>` + string(long) + `</description><pubDate>Mon, 6 Feb 2026 08:00:00 +0700</pubDate></item>`
	raw := `<rss><channel>` + item + item + `</channel></rss>`

	alerts, err := ParseActiveAlerts([]byte(raw))
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Len(t, []rune(alerts[0].Summary), 200)
	assert.Equal(t, "Aceh", alerts[0].Province)
}

func TestParseActiveAlerts_Empty(t *testing.T) {
	alerts, err := ParseActiveAlerts([]byte(`<rss><channel><title>none</title></channel></rss>`))
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestParseActiveAlerts_Rejects(t *testing.T) {
	tests := []struct {
		name string
		item string
	}{
		{"missing link", `<item><title>a</title><pubDate>Mon, 16 Feb 2026 22:50:00 +0700</pubDate></item>`},
		{"link without code", `<item><link>https://x.test/rss.xml</link><pubDate>Mon, 16 Feb 2026 22:50:00 +0700</pubDate></item>`},
		{"bad pubDate", `<item><link>https://x.test/CBT20260216004_alert.xml</link><pubDate>yesterday</pubDate></item>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseActiveAlerts([]byte(`<rss><channel>` + tt.item + `</channel></rss>`))
			assert.ErrorIs(t, err, domain.ErrParse)
		})
	}
}

func TestProvinceFromAlertCode(t *testing.T) {
	assert.Equal(t, "CBT", ProvinceFromAlertCode("CBT20260216004"))
	assert.Equal(t, "", ProvinceFromAlertCode("cbt20260216004"))
	assert.Equal(t, "", ProvinceFromAlertCode("CBT"))
	assert.Equal(t, "", ProvinceFromAlertCode("2.49.0.1"))
}
