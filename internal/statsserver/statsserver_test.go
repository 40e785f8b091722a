package statsserver

import (
	"crypto/tls"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	http3 "github.com/quic-go/quic-go/http3"

	"github.com/hmmsim/hmmsim/internal/addrspace"
	"github.com/hmmsim/hmmsim/internal/stats"
)

func recorderWithSomeData() *stats.Recorder {
	r := stats.New()
	r.RecordMigration(addrspace.DRAM, true, 1, 50)
	r.SetInitialFootprint(4096, 8192)
	return r
}

func client(t *testing.T) *http.Client {
	t.Helper()
	return &http.Client{
		Transport: &http3.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true, MinVersion: tls.VersionTLS13},
		},
		Timeout: 2 * time.Second,
	}
}

func TestSnapshotEndpointServesTheLatestSnapshot(t *testing.T) {
	tlsCfg, err := SelfSignedTLS([]string{"127.0.0.1"}, time.Hour)
	if err != nil {
		t.Fatalf("SelfSignedTLS: %v", err)
	}
	rec := recorderWithSomeData()
	srv := New("127.0.0.1:0", tlsCfg, rec, nil)

	addr, err := srv.Start()
	if err != nil {
		t.Skip("http3 not supported in this environment:", err)
	}
	defer srv.Stop()

	cli := client(t)
	resp, err := cli.Get("https://" + addr + "/snapshot")
	if err != nil {
		t.Skip("http3 dial failed:", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	var snap stats.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if snap.FullMigrations.Dram != 1 {
		t.Fatalf("FullMigrations.Dram = %d, want 1", snap.FullMigrations.Dram)
	}
	if snap.DramMemorySizeInitial != 4096 {
		t.Fatalf("DramMemorySizeInitial = %d, want 4096", snap.DramMemorySizeInitial)
	}
}

func TestHistoryEndpointReturns404WhenNoHistorySourceIsWired(t *testing.T) {
	tlsCfg, err := SelfSignedTLS([]string{"127.0.0.1"}, time.Hour)
	if err != nil {
		t.Fatalf("SelfSignedTLS: %v", err)
	}
	srv := New("127.0.0.1:0", tlsCfg, recorderWithSomeData(), nil)

	addr, err := srv.Start()
	if err != nil {
		t.Skip("http3 not supported in this environment:", err)
	}
	defer srv.Stop()

	cli := client(t)
	resp, err := cli.Get("https://" + addr + "/history")
	if err != nil {
		t.Skip("http3 dial failed:", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestHistoryEndpointServesWiredRecords(t *testing.T) {
	tlsCfg, err := SelfSignedTLS([]string{"127.0.0.1"}, time.Hour)
	if err != nil {
		t.Fatalf("SelfSignedTLS: %v", err)
	}
	history := HistoryFunc(func(limit int) ([]HistoryRecord, error) {
		return []HistoryRecord{
			{SimTime: 100, Snapshot: recorderWithSomeData().Snapshot()},
		}, nil
	})
	srv := New("127.0.0.1:0", tlsCfg, recorderWithSomeData(), history)

	addr, err := srv.Start()
	if err != nil {
		t.Skip("http3 not supported in this environment:", err)
	}
	defer srv.Stop()

	cli := client(t)
	resp, err := cli.Get("https://" + addr + "/history")
	if err != nil {
		t.Skip("http3 dial failed:", err)
	}
	defer resp.Body.Close()

	var recs []HistoryRecord
	if err := json.NewDecoder(resp.Body).Decode(&recs); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(recs) != 1 || recs[0].SimTime != 100 {
		t.Fatalf("unexpected history payload: %+v", recs)
	}
}
