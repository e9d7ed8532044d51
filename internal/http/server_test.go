package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"dcledger/internal/core"
	"dcledger/internal/export/memory"
	"dcledger/internal/services"
	"dcledger/internal/storage"
)

type testEnv struct {
	srv    *Server
	repo   *storage.SQLiteRepository
	custID int64
	itemID int64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	custID, err := repo.CreateCustomer(ctx, core.Customer{Name: "Acme Forgings", GSTNo: "29ABCDE1234F1Z5"})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	itemID, err := repo.CreateItem(ctx, core.Item{Name: "Flange 80mm", HSNCode: "7307"})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}

	archive := memory.New()
	svc := services.NewMovementService(repo, archive, nil)
	srv := NewServer(":0", svc, repo, archive)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })

	return &testEnv{srv: srv, repo: repo, custID: custID, itemID: itemID}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decodeInto(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}

func TestHealthEndpoints(t *testing.T) {
	e := newTestEnv(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := e.do(t, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rr.Code)
		}
	}
}

func TestCreateAndListInward(t *testing.T) {
	e := newTestEnv(t)

	body := `{"entry_date":"2025-03-12","customer_id":` + itoa(e.custID) +
		`,"item_id":` + itoa(e.itemID) + `,"dc_no_cust":"DC-101","qty":"10","rate":"5"}`
	rr := e.do(t, http.MethodPost, "/api/inward", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rr.Code, rr.Body.String())
	}
	var created createResponse
	decodeInto(t, rr, &created)
	if created.ID == 0 {
		t.Fatalf("no id in create response")
	}
	if created.ExportError != "" {
		t.Fatalf("unexpected export error: %s", created.ExportError)
	}

	rr = e.do(t, http.MethodGet, "/api/inward", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list status = %d", rr.Code)
	}
	var list []movementJSON
	decodeInto(t, rr, &list)
	if len(list) != 1 {
		t.Fatalf("list length = %d, want 1", len(list))
	}
	if list[0].DCNoCust != "DC-101" || list[0].Amount.String() != "50" {
		t.Fatalf("unexpected row: %+v", list[0])
	}
	if list[0].ExportState != string(core.Exported) {
		t.Fatalf("export state = %q, want exported", list[0].ExportState)
	}
}

func TestCreateInwardValidation(t *testing.T) {
	e := newTestEnv(t)

	cases := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{`, http.StatusBadRequest},
		{"unknown field", `{"entry_date":"2025-03-12","bogus":1}`, http.StatusBadRequest},
		{"bad date", `{"entry_date":"12/03/2025","customer_id":` + itoa(e.custID) + `,"item_id":` + itoa(e.itemID) + `,"qty":"1","rate":"1"}`, http.StatusUnprocessableEntity},
		{"unknown customer", `{"entry_date":"2025-03-12","customer_id":999,"item_id":` + itoa(e.itemID) + `,"qty":"1","rate":"1"}`, http.StatusUnprocessableEntity},
		{"negative qty", `{"entry_date":"2025-03-12","customer_id":` + itoa(e.custID) + `,"item_id":` + itoa(e.itemID) + `,"qty":"-1","rate":"1"}`, http.StatusUnprocessableEntity},
		{"negative rate", `{"entry_date":"2025-03-12","customer_id":` + itoa(e.custID) + `,"item_id":` + itoa(e.itemID) + `,"qty":"1","rate":"-1"}`, http.StatusUnprocessableEntity},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rr := e.do(t, http.MethodPost, "/api/inward", c.body)
			if rr.Code != c.want {
				t.Errorf("status = %d, want %d (body %s)", rr.Code, c.want, rr.Body.String())
			}
		})
	}

	rr := e.do(t, http.MethodPost, "/api/inward",
		`{"entry_date":"2025-03-12","customer_id":`+itoa(e.custID)+`,"item_id":`+itoa(e.itemID)+`,"qty":"1","rate":"-1"}`)
	if !strings.Contains(rr.Body.String(), "negative rate") {
		t.Fatalf("negative rate response does not name the field: %s", rr.Body.String())
	}

	rr = e.do(t, http.MethodGet, "/api/inward", "")
	var list []movementJSON
	decodeInto(t, rr, &list)
	if len(list) != 0 {
		t.Fatalf("rejected requests left %d journal rows", len(list))
	}
}

func TestDeleteMovement(t *testing.T) {
	e := newTestEnv(t)

	rr := e.do(t, http.MethodPost, "/api/outward", `{"entry_date":"2025-03-14","customer_id":`+itoa(e.custID)+
		`,"item_id":`+itoa(e.itemID)+`,"dc_no_cust":"DC-101","dc_unique_no_noncust":"OUT-9","qty":"4"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rr.Code)
	}
	var created createResponse
	decodeInto(t, rr, &created)

	path := "/api/movements/outward/" + itoa(created.ID)
	if rr := e.do(t, http.MethodDelete, path, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rr.Code)
	}
	if rr := e.do(t, http.MethodDelete, path, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", rr.Code)
	}
	if rr := e.do(t, http.MethodDelete, "/api/movements/sideways/1", ""); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad direction status = %d", rr.Code)
	}
}

func TestListMovementsBothDirections(t *testing.T) {
	e := newTestEnv(t)

	e.do(t, http.MethodPost, "/api/inward", `{"entry_date":"2025-04-01","customer_id":`+itoa(e.custID)+
		`,"item_id":`+itoa(e.itemID)+`,"dc_no_cust":"DC-7","qty":"10","rate":"2"}`)
	e.do(t, http.MethodPost, "/api/outward", `{"entry_date":"2025-04-03","customer_id":`+itoa(e.custID)+
		`,"item_id":`+itoa(e.itemID)+`,"dc_no_cust":"DC-7","dc_unique_no_noncust":"OUT-1","qty":"6"}`)

	rr := e.do(t, http.MethodGet, "/api/movements?customer_id="+itoa(e.custID), "")
	if rr.Code != http.StatusOK {
		t.Fatalf("movements status = %d", rr.Code)
	}
	var both movementsJSON
	decodeInto(t, rr, &both)
	if len(both.Inward) != 1 || len(both.Outward) != 1 {
		t.Fatalf("inward/outward = %d/%d, want 1/1", len(both.Inward), len(both.Outward))
	}

	rr = e.do(t, http.MethodGet, "/api/movements?customer_id=999", "")
	decodeInto(t, rr, &both)
	if len(both.Inward) != 0 || len(both.Outward) != 0 {
		t.Fatalf("filter leaked rows: %+v", both)
	}
}

func TestOverviewEndpoint(t *testing.T) {
	e := newTestEnv(t)

	e.do(t, http.MethodPost, "/api/inward", `{"entry_date":"2025-04-01","customer_id":`+itoa(e.custID)+
		`,"item_id":`+itoa(e.itemID)+`,"dc_no_cust":"DC-7","qty":"10","rate":"2"}`)
	e.do(t, http.MethodPost, "/api/outward", `{"entry_date":"2025-04-03","customer_id":`+itoa(e.custID)+
		`,"item_id":`+itoa(e.itemID)+`,"dc_no_cust":"DC-7","dc_unique_no_noncust":"OUT-1","qty":"6"}`)

	rr := e.do(t, http.MethodGet, "/api/overview", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("overview status = %d", rr.Code)
	}
	var rows []overviewRowJSON
	decodeInto(t, rr, &rows)
	if len(rows) != 1 {
		t.Fatalf("overview rows = %d, want 1", len(rows))
	}
	if rows[0].Dispatched.String() != "6" || rows[0].Pending.String() != "4" {
		t.Fatalf("dispatched/pending = %s/%s, want 6/4", rows[0].Dispatched, rows[0].Pending)
	}
	if rows[0].CustomerName != "Acme Forgings" {
		t.Fatalf("customer name not resolved: %+v", rows[0])
	}
	if rows[0].HSNCode != "7307" {
		t.Fatalf("hsn code = %q, want 7307", rows[0].HSNCode)
	}
}

func TestMasterEndpoints(t *testing.T) {
	e := newTestEnv(t)

	rr := e.do(t, http.MethodPost, "/api/customers", `{"name":"Beta Metals","gst_no":"27XYZDE1234F1Z5"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create customer status = %d", rr.Code)
	}
	var created createResponse
	decodeInto(t, rr, &created)

	if rr := e.do(t, http.MethodPost, "/api/customers", `{"name":"  "}`); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("blank name status = %d", rr.Code)
	}

	rr = e.do(t, http.MethodGet, "/api/customers", "")
	var customers []customerJSON
	decodeInto(t, rr, &customers)
	if len(customers) != 2 {
		t.Fatalf("customers = %d, want 2", len(customers))
	}

	if rr := e.do(t, http.MethodDelete, "/api/customers/"+itoa(created.ID), ""); rr.Code != http.StatusNoContent {
		t.Fatalf("delete customer status = %d", rr.Code)
	}
	if rr := e.do(t, http.MethodDelete, "/api/customers/"+itoa(created.ID), ""); rr.Code != http.StatusNotFound {
		t.Fatalf("delete missing customer status = %d", rr.Code)
	}

	rr = e.do(t, http.MethodPost, "/api/items", `{"name":"Shaft 20mm","hsn_code":"8483"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create item status = %d", rr.Code)
	}
	rr = e.do(t, http.MethodGet, "/api/items", "")
	var items []itemJSON
	decodeInto(t, rr, &items)
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
}

func TestArchiveEndpoints(t *testing.T) {
	e := newTestEnv(t)

	e.do(t, http.MethodPost, "/api/inward", `{"entry_date":"2025-03-12","customer_id":`+itoa(e.custID)+
		`,"item_id":`+itoa(e.itemID)+`,"dc_no_cust":"DC-1","qty":"10","rate":"5"}`)

	rr := e.do(t, http.MethodGet, "/api/archives", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list archives status = %d", rr.Code)
	}
	var ids []string
	decodeInto(t, rr, &ids)
	if len(ids) != 1 || ids[0] != "2025-03" {
		t.Fatalf("archives = %v, want [2025-03]", ids)
	}

	rr = e.do(t, http.MethodGet, "/api/archives/2025-03/download", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("download status = %d", rr.Code)
	}
	if got := rr.Header().Get("Content-Disposition"); !strings.Contains(got, "2025-03.xlsx") {
		t.Fatalf("content disposition = %q", got)
	}
	if rr.Body.Len() == 0 {
		t.Fatalf("empty workbook body")
	}

	if rr := e.do(t, http.MethodGet, "/api/archives/2025-04/download", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("missing archive status = %d", rr.Code)
	}
	if rr := e.do(t, http.MethodGet, "/api/archives/march/download", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad archive id status = %d", rr.Code)
	}
}

func TestExportFailuresEndpoint(t *testing.T) {
	e := newTestEnv(t)

	rr := e.do(t, http.MethodGet, "/api/exports/failures", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("failures status = %d", rr.Code)
	}
	var failures []movementJSON
	decodeInto(t, rr, &failures)
	if len(failures) != 0 {
		t.Fatalf("failures = %d, want 0", len(failures))
	}
}

func TestMethodNotAllowed(t *testing.T) {
	e := newTestEnv(t)
	rr := e.do(t, http.MethodPut, "/api/inward", `{}`)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rr.Code)
	}
	if allow := rr.Header().Get("Allow"); !strings.Contains(allow, http.MethodPost) {
		t.Fatalf("Allow header = %q", allow)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
