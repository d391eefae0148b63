package discovery

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseSubnetExcludesNetworkAndBroadcast(t *testing.T) {
	hosts, err := ParseSubnet("192.168.1.0/30")
	require.NoError(t, err)
	require.Equal(t, []string{"192.168.1.1", "192.168.1.2"}, hosts)
}

func TestParseSubnetRejectsInvalidCIDR(t *testing.T) {
	_, err := ParseSubnet("not-a-subnet")
	require.Error(t, err)
}

func TestParseSubnetSlash31HasNoHostExclusion(t *testing.T) {
	hosts, err := ParseSubnet("10.0.0.0/31")
	require.NoError(t, err)
	require.Equal(t, []string{"10.0.0.0", "10.0.0.1"}, hosts)
}

func TestScanSubnetRejectsInvalidSubnetString(t *testing.T) {
	_, err := ScanSubnet(context.Background(), "garbage", Config{})
	require.Error(t, err)
}

func TestScanSubnetFindsRespondingHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<netftapi2><cfgcpf>1000000</cfgcpf><cfgcpt>100000</cfgcpt><setserial>FT999</setserial></netftapi2>`))
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	_, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	sensors := scanHosts(context.Background(), []string{"127.0.0.1"}, Config{
		HTTPPort:     port,
		ProbeTimeout: time.Second,
	})
	require.Len(t, sensors, 1)
	require.Equal(t, "FT999", sensors[0].SerialNumber)
}

func TestScanSubnetReportsProgress(t *testing.T) {
	calls := 0
	scanHosts(context.Background(), []string{"192.0.2.1", "192.0.2.2"}, Config{
		ProbeTimeout: 20 * time.Millisecond,
		OnProgress:   func(completed, total int) { calls++ },
	})
	require.Equal(t, 2, calls)
}
