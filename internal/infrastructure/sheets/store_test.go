package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"CommunityInsights/internal/domain"
)

func TestStorePostRowsSkipsBlankAndMalformed(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"sheetData":[
			["id-1","Pricing","body","","a, b","Business","New"],
			["","orphan"],
			["id-2","p","c","s","","","Processed","","","","","","extra"],
			["id-3","p","c","s","","","Processed"]
		]}`))
	})

	store := NewStore(client, nil)
	rows := store.PostRows(context.Background(), "s")
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d: %+v", len(rows), rows)
	}
	if rows[0].ID != "id-1" || rows[0].Status != domain.StatusNew || len(rows[0].Tags) != 2 {
		t.Fatalf("unexpected first row: %+v", rows[0])
	}
	if rows[1].ID != "id-3" || rows[1].Status != domain.StatusProcessed {
		t.Fatalf("unexpected second row: %+v", rows[1])
	}
}

func TestStoreAppendGenerated(t *testing.T) {
	t.Parallel()

	var got [][]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("sheet") != "posts-ai" {
			t.Errorf("unexpected sheet %s", r.URL.Query().Get("sheet"))
		}
		var body struct {
			Data [][]string `json:"data"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		got = body.Data
		_, _ = w.Write([]byte(`{"created":1}`))
	})

	store := NewStore(client, nil)
	row := domain.NewGeneratedPostRow(domain.PostRow{ID: "id-1", OriginalContent: "hello"}, "draft", time.Unix(0, 0))
	n, err := store.AppendGenerated(context.Background(), "posts-ai", []domain.GeneratedPostRow{row})
	if err != nil || n != 1 {
		t.Fatalf("AppendGenerated: %d, %v", n, err)
	}
	if len(got) != 1 || len(got[0]) != 6 || got[0][5] != "Draft" || got[0][1] != "hello..." {
		t.Fatalf("unexpected payload %v", got)
	}
}
