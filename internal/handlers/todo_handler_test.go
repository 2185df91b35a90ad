package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"go-todo-api/internal/models"
	"go-todo-api/testutil"
)

// todoResponse は {"todo": {...}} 形式のレスポンス用です。
type todoResponse struct {
	Todo models.Todo `json:"todo"`
}

type todosResponse struct {
	Todos []models.Todo `json:"todos"`
}

func doRequest(router http.Handler, method, path, token string, payload interface{}) *httptest.ResponseRecorder {
	var body *bytes.Buffer
	if payload != nil {
		b, _ := json.Marshal(payload)
		body = bytes.NewBuffer(b)
	} else {
		body = bytes.NewBuffer(nil)
	}
	req, _ := http.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("x-auth", token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateTodo_Success(t *testing.T) {
	_, r, _, userRepo := testutil.SetupTestDB(t)

	token := testutil.SeedToken(t, userRepo, testutil.UserOneEmail)
	w := doRequest(r, http.MethodPost, "/api/todos", token, map[string]string{"text": "Test todo text"})

	assert.Equal(t, http.StatusCreated, w.Code, "Expected HTTP Status Code 201 Created")

	var createdTodo models.Todo
	err := json.Unmarshal(w.Body.Bytes(), &createdTodo)
	assert.NoError(t, err, "Response should be a valid JSON todo object")
	assert.False(t, createdTodo.ID.IsZero(), "Expected a non-zero Todo ID")
	assert.Equal(t, "Test todo text", createdTodo.Text)
	assert.False(t, createdTodo.Completed, "Expected completed to be false")
	assert.Nil(t, createdTodo.CompletedAt, "Expected completedAt to be absent")

	// 作成者が認証済みユーザーになっていること
	user, err := userRepo.FindByEmail(context.Background(), testutil.UserOneEmail)
	require.NoError(t, err)
	assert.Equal(t, user.ID, createdTodo.CreatorID)
}

func TestCreateTodo_EmptyText(t *testing.T) {
	_, r, todoRepo, userRepo := testutil.SetupTestDB(t)

	token := testutil.SeedToken(t, userRepo, testutil.UserOneEmail)

	w := doRequest(r, http.MethodPost, "/api/todos", token, map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodPost, "/api/todos", token, map[string]string{"text": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	count, err := todoRepo.Todos.CountDocuments(context.Background(), bson.M{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), count, "Expected no todo to be created")
}

func TestCreateTodo_Unauthenticated(t *testing.T) {
	_, r, _, _ := testutil.SetupTestDB(t)

	w := doRequest(r, http.MethodPost, "/api/todos", "", map[string]string{"text": "Test todo text"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetTodos_OwnerScoped(t *testing.T) {
	_, r, _, userRepo := testutil.SetupTestDB(t)

	tokenOne := testutil.SeedToken(t, userRepo, testutil.UserOneEmail)
	tokenTwo := testutil.SeedToken(t, userRepo, testutil.UserTwoEmail)

	testutil.CreateTestTodo(t, r, tokenOne, "first todo")
	testutil.CreateTestTodo(t, r, tokenOne, "second todo")
	testutil.CreateTestTodo(t, r, tokenTwo, "other user todo")

	w := doRequest(r, http.MethodGet, "/api/todos", tokenOne, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp todosResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Todos, 2, "Expected only the caller's todos")
	for _, todo := range resp.Todos {
		assert.NotEqual(t, "other user todo", todo.Text)
	}
}

func TestGetTodoByID_Success(t *testing.T) {
	_, r, _, userRepo := testutil.SetupTestDB(t)

	token := testutil.SeedToken(t, userRepo, testutil.UserOneEmail)
	created := testutil.CreateTestTodo(t, r, token, "first todo")

	w := doRequest(r, http.MethodGet, "/api/todos/"+created.ID.Hex(), token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp todoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, created.ID, resp.Todo.ID)
	assert.Equal(t, "first todo", resp.Todo.Text)
}

func TestGetTodoByID_OtherUserNotFound(t *testing.T) {
	_, r, _, userRepo := testutil.SetupTestDB(t)

	tokenOne := testutil.SeedToken(t, userRepo, testutil.UserOneEmail)
	tokenTwo := testutil.SeedToken(t, userRepo, testutil.UserTwoEmail)
	created := testutil.CreateTestTodo(t, r, tokenOne, "first todo")

	// 他人のTodoは存在しない扱い（403ではなく404）
	w := doRequest(r, http.MethodGet, "/api/todos/"+created.ID.Hex(), tokenTwo, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetTodoByID_MissingAndMalformed(t *testing.T) {
	_, r, _, userRepo := testutil.SetupTestDB(t)

	token := testutil.SeedToken(t, userRepo, testutil.UserOneEmail)

	// 存在しないID
	w := doRequest(r, http.MethodGet, "/api/todos/"+primitive.NewObjectID().Hex(), token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// 形式が不正なIDも同じ404
	w = doRequest(r, http.MethodGet, "/api/todos/123abc", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateTodo_CompletedTransitions(t *testing.T) {
	_, r, _, userRepo := testutil.SetupTestDB(t)

	token := testutil.SeedToken(t, userRepo, testutil.UserOneEmail)
	created := testutil.CreateTestTodo(t, r, token, "t")
	require.False(t, created.Completed)
	require.Nil(t, created.CompletedAt)

	// completed=true → completedAtが設定される
	w := doRequest(r, http.MethodPatch, "/api/todos/"+created.ID.Hex(), token, map[string]interface{}{"completed": true})
	assert.Equal(t, http.StatusOK, w.Code)

	var resp todoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Todo.Completed)
	require.NotNil(t, resp.Todo.CompletedAt)

	// completed=false → completedAtがドキュメントから消える
	w = doRequest(r, http.MethodPatch, "/api/todos/"+created.ID.Hex(), token, map[string]interface{}{"completed": false})
	assert.Equal(t, http.StatusOK, w.Code)

	var raw map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.Equal(t, false, raw["todo"]["completed"])
	_, hasCompletedAt := raw["todo"]["completedAt"]
	assert.False(t, hasCompletedAt, "Expected completedAt to be cleared")
}

func TestUpdateTodo_Text(t *testing.T) {
	_, r, todoRepo, userRepo := testutil.SetupTestDB(t)

	token := testutil.SeedToken(t, userRepo, testutil.UserOneEmail)
	created := testutil.CreateTestTodo(t, r, token, "first todo")

	w := doRequest(r, http.MethodPatch, "/api/todos/"+created.ID.Hex(), token, map[string]interface{}{
		"text":      "new todo",
		"completed": true,
	})
	assert.Equal(t, http.StatusOK, w.Code)

	var resp todoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "new todo", resp.Todo.Text)
	assert.True(t, resp.Todo.Completed)

	// 永続化されていること
	user, err := userRepo.FindByEmail(context.Background(), testutil.UserOneEmail)
	require.NoError(t, err)
	stored, err := todoRepo.FindOwned(context.Background(), created.ID.Hex(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "new todo", stored.Text)
	assert.NotNil(t, stored.CompletedAt)
}

func TestUpdateTodo_EmptyTextRejected(t *testing.T) {
	_, r, _, userRepo := testutil.SetupTestDB(t)

	token := testutil.SeedToken(t, userRepo, testutil.UserOneEmail)
	created := testutil.CreateTestTodo(t, r, token, "first todo")

	w := doRequest(r, http.MethodPatch, "/api/todos/"+created.ID.Hex(), token, map[string]interface{}{"text": " "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 変更されていないこと
	w = doRequest(r, http.MethodGet, "/api/todos/"+created.ID.Hex(), token, nil)
	var resp todoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "first todo", resp.Todo.Text)
}

func TestUpdateTodo_OtherUserNotFound(t *testing.T) {
	_, r, _, userRepo := testutil.SetupTestDB(t)

	tokenOne := testutil.SeedToken(t, userRepo, testutil.UserOneEmail)
	tokenTwo := testutil.SeedToken(t, userRepo, testutil.UserTwoEmail)
	created := testutil.CreateTestTodo(t, r, tokenOne, "first todo")

	w := doRequest(r, http.MethodPatch, "/api/todos/"+created.ID.Hex(), tokenTwo, map[string]interface{}{"completed": true})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// 所有者から見ると変更されていないこと
	w = doRequest(r, http.MethodGet, "/api/todos/"+created.ID.Hex(), tokenOne, nil)
	var resp todoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Todo.Completed)
}

func TestDeleteTodo_Success(t *testing.T) {
	_, r, _, userRepo := testutil.SetupTestDB(t)

	token := testutil.SeedToken(t, userRepo, testutil.UserOneEmail)
	created := testutil.CreateTestTodo(t, r, token, "first todo")

	w := doRequest(r, http.MethodDelete, "/api/todos/"+created.ID.Hex(), token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// 削除前の状態が返ること
	var resp todoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, created.ID, resp.Todo.ID)
	assert.Equal(t, "first todo", resp.Todo.Text)

	// 削除後は404になること
	w = doRequest(r, http.MethodGet, "/api/todos/"+created.ID.Hex(), token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteTodo_OtherUserNotFound(t *testing.T) {
	_, r, _, userRepo := testutil.SetupTestDB(t)

	tokenOne := testutil.SeedToken(t, userRepo, testutil.UserOneEmail)
	tokenTwo := testutil.SeedToken(t, userRepo, testutil.UserTwoEmail)
	created := testutil.CreateTestTodo(t, r, tokenOne, "first todo")

	w := doRequest(r, http.MethodDelete, "/api/todos/"+created.ID.Hex(), tokenTwo, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// 所有者からはまだ見えること
	w = doRequest(r, http.MethodGet, "/api/todos/"+created.ID.Hex(), tokenOne, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDeleteTodo_MissingAndMalformed(t *testing.T) {
	_, r, _, userRepo := testutil.SetupTestDB(t)

	token := testutil.SeedToken(t, userRepo, testutil.UserOneEmail)

	w := doRequest(r, http.MethodDelete, "/api/todos/"+primitive.NewObjectID().Hex(), token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(r, http.MethodDelete, "/api/todos/123abc", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
