package handler

import (
	"net/http"
	"testing"

	"github.com/JBDLC/GMAO/internal/gmao/testutil"
	"github.com/gin-gonic/gin"
)

func createMachine(t *testing.T, router *gin.Engine, token string, body map[string]interface{}) map[string]interface{} {
	t.Helper()
	w := testutil.DoRequest(router, "POST", "/api/v1/machines", body, token)
	return dataOf(t, w, http.StatusCreated)
}

func TestMachineCreateAndTree(t *testing.T) {
	router, _ := setupGMAOTest(t)
	token := testutil.DefaultTestToken()

	root := createMachine(t, router, token, map[string]interface{}{
		"name": "Presse", "code": "PR-01", "hour_counter_enabled": true, "hours": 120,
	})
	rootID := root["id"].(string)
	if root["hours"].(float64) != 120 {
		t.Errorf("Expected hours 120, got %v", root["hours"])
	}

	createMachine(t, router, token, map[string]interface{}{
		"name": "Moteur", "code": "PR-01-M", "parent_id": rootID,
	})

	w := testutil.DoRequest(router, "GET", "/api/v1/machines", nil, token)
	data := dataOf(t, w, http.StatusOK)
	items := data["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("Expected 1 root, got %d", len(items))
	}
	node := items[0].(map[string]interface{})
	if node["is_root"] != true || node["level"].(float64) != 1 {
		t.Errorf("Expected root at level 1, got is_root=%v level=%v", node["is_root"], node["level"])
	}
	children := node["children"].([]interface{})
	if len(children) != 1 {
		t.Fatalf("Expected 1 child, got %d", len(children))
	}
	child := children[0].(map[string]interface{})
	if child["code"] != "PR-01-M" || child["level"].(float64) != 2 {
		t.Errorf("Unexpected child node: %v", child)
	}
}

func TestMachineGetDetail(t *testing.T) {
	router, env := setupGMAOTest(t)
	token := testutil.DefaultTestToken()
	root := testutil.SeedMachine(t, env.DB, "R1", "", true, 50)
	testutil.SeedMachine(t, env.DB, "R1-A", root.ID, false, 0)

	w := testutil.DoRequest(router, "GET", "/api/v1/machines/"+root.ID, nil, token)
	data := dataOf(t, w, http.StatusOK)
	if data["is_root"] != true {
		t.Errorf("Expected is_root true, got %v", data["is_root"])
	}
	if data["root_id"] != root.ID {
		t.Errorf("Expected root_id %s, got %v", root.ID, data["root_id"])
	}
	if n := len(data["children"].([]interface{})); n != 1 {
		t.Errorf("Expected 1 child, got %d", n)
	}
	machine := data["machine"].(map[string]interface{})
	if machine["code"] != "R1" {
		t.Errorf("Expected code R1, got %v", machine["code"])
	}
}

func TestMachineCreateValidation(t *testing.T) {
	router, env := setupGMAOTest(t)
	token := testutil.DefaultTestToken()
	testutil.SeedMachine(t, env.DB, "DUP", "", false, 0)

	// 缺少必填字段
	w := testutil.DoRequest(router, "POST", "/api/v1/machines", map[string]interface{}{"code": "X"}, token)
	expectStatus(t, w.Code, http.StatusBadRequest, w.Body.String())

	w = testutil.DoRequest(router, "POST", "/api/v1/machines", map[string]interface{}{
		"name": "Doublon", "code": "DUP",
	}, token)
	expectStatus(t, w.Code, http.StatusBadRequest, w.Body.String())
	resp := testutil.ParseResponse(w)
	if resp["code"].(float64) != 40000 {
		t.Errorf("Expected code 40000, got %v", resp["code"])
	}
}

func TestMachineReparentCycleRejected(t *testing.T) {
	router, env := setupGMAOTest(t)
	token := testutil.DefaultTestToken()
	a := testutil.SeedMachine(t, env.DB, "A", "", false, 0)
	b := testutil.SeedMachine(t, env.DB, "B", a.ID, false, 0)

	w := testutil.DoRequest(router, "PUT", "/api/v1/machines/"+a.ID+"/parent",
		map[string]interface{}{"parent_id": b.ID}, token)
	expectStatus(t, w.Code, http.StatusConflict, w.Body.String())

	w = testutil.DoRequest(router, "PUT", "/api/v1/machines/"+b.ID+"/parent",
		map[string]interface{}{"parent_id": nil}, token)
	data := dataOf(t, w, http.StatusOK)
	if data["parent_id"] != nil {
		t.Errorf("Expected B promoted to root, got parent_id %v", data["parent_id"])
	}
}

func TestMachineDeleteBlockedByChildren(t *testing.T) {
	router, env := setupGMAOTest(t)
	token := testutil.DefaultTestToken()
	root := testutil.SeedMachine(t, env.DB, "ROOT", "", false, 0)
	testutil.SeedMachine(t, env.DB, "LEAF", root.ID, false, 0)

	w := testutil.DoRequest(router, "DELETE", "/api/v1/machines/"+root.ID, nil, token)
	data := dataOf(t, w, http.StatusConflict)
	deps := data["dependents"].(map[string]interface{})
	if deps["children"].(float64) != 1 {
		t.Errorf("Expected children=1, got %v", deps["children"])
	}

	w = testutil.DoRequest(router, "GET", "/api/v1/machines/"+root.ID, nil, token)
	expectStatus(t, w.Code, http.StatusOK, w.Body.String())
}

func TestMachineDeleteRequiresManager(t *testing.T) {
	router, env := setupGMAOTest(t)
	m := testutil.SeedMachine(t, env.DB, "SOLO", "", false, 0)

	technician := testutil.GenerateTestToken("tech-001", "Technicien", []string{"gmao_technician"})
	w := testutil.DoRequest(router, "DELETE", "/api/v1/machines/"+m.ID, nil, technician)
	expectStatus(t, w.Code, http.StatusForbidden, w.Body.String())

	w = testutil.DoRequest(router, "DELETE", "/api/v1/machines/"+m.ID, nil, testutil.DefaultTestToken())
	expectStatus(t, w.Code, http.StatusOK, w.Body.String())

	w = testutil.DoRequest(router, "GET", "/api/v1/machines/"+m.ID, nil, testutil.DefaultTestToken())
	expectStatus(t, w.Code, http.StatusNotFound, w.Body.String())
}

func TestMachineFollowShowsOnDashboard(t *testing.T) {
	router, env := setupGMAOTest(t)
	token := testutil.DefaultTestToken()
	m := testutil.SeedMachine(t, env.DB, "F1", "", true, 0)

	w := testutil.DoRequest(router, "POST", "/api/v1/machines/"+m.ID+"/follow", nil, token)
	data := dataOf(t, w, http.StatusOK)
	if data["followed"] != true {
		t.Errorf("Expected followed true, got %v", data["followed"])
	}

	w = testutil.DoRequest(router, "GET", "/api/v1/dashboard", nil, token)
	expectStatus(t, w.Code, http.StatusOK, w.Body.String())
}
