// Package models содержит модели сущностей, которые хранятся в документном
// хранилище и отдаются наружу (CLI, локальный API).
//
// Все сущности имеют общие поля Base. Имена JSON-полей совпадают с именами
// полей документов в хранилище, по ним же строятся запросы.
package models

// Имена полей документов, по которым строятся запросы.
const (
	FieldID            = "_id"
	FieldType          = "type"
	FieldCreated       = "created"
	FieldModified      = "modified"
	FieldName          = "name"
	FieldParentID      = "parentId"
	FieldSortOrder     = "sortOrder"
	FieldRequestID     = "requestId"
	FieldWorkspaceID   = "workspaceId"
	FieldEnvironmentID = "environmentId"
	FieldIsActive      = "isActive"
	FieldIsSecret      = "isSecret"
	FieldValue         = "value"
	FieldKey           = "key"
)

// Base — общие поля всех сущностей.
//
//   - ID: уникальный id с префиксом типа, не меняется
//   - Type: тег типа сущности, не меняется
//   - Created: время создания (epoch ms), не меняется
//   - Modified: время последнего изменения (epoch ms)
type Base struct {
	ID       string `json:"_id"`
	Type     string `json:"type"`
	Created  int64  `json:"created"`
	Modified int64  `json:"modified"`
}

// Workspace — корень иерархии папок и запросов.
type Workspace struct {
	Base
	Name string `json:"name"`
}

// Folder — узел дерева. ParentID указывает на Workspace или другую Folder.
type Folder struct {
	Base
	Name      string `json:"name"`
	ParentID  string `json:"parentId"`
	SortOrder int    `json:"sortOrder"`
}

// Header — пара заголовка запроса/ответа.
type Header struct {
	Name    string `json:"name"`
	Value   string `json:"value"`
	Enabled bool   `json:"enabled"`
}

// RequestBody — тело запроса.
type RequestBody struct {
	Type    string `json:"type"` // none|json|text|form
	Content string `json:"content"`
}

// RequestAuth — настройки авторизации запроса.
type RequestAuth struct {
	Type     string `json:"type"` // none|basic|bearer|oauth2
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Token    string `json:"token,omitempty"`
}

// Assertion — проверка ответа, которую исполняет внешний примитив.
type Assertion struct {
	Source   string `json:"source"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
	Enabled  bool   `json:"enabled"`
}

// Request — сохранённый запрос. Поля кроме Name/URL/Method/ParentID/SortOrder
// нужны только для отображения и исполнения.
type Request struct {
	Base
	Name              string       `json:"name"`
	URL               string       `json:"url"`
	Method            string       `json:"method"`
	ParentID          string       `json:"parentId"`
	SortOrder         int          `json:"sortOrder"`
	Headers           []Header     `json:"headers,omitempty"`
	Body              *RequestBody `json:"body,omitempty"`
	Auth              *RequestAuth `json:"auth,omitempty"`
	Assertions        []Assertion  `json:"assertions,omitempty"`
	PreRequestScript  string       `json:"preRequestScript,omitempty"`
	PostRequestScript string       `json:"postRequestScript,omitempty"`
}

// Response — одна запись истории исполнения запроса.
//
// Тело ответа хранится снаружи, BodyPath указывает на него.
type Response struct {
	Base
	RequestID     string   `json:"requestId"`
	StatusCode    int      `json:"statusCode"`
	StatusMessage string   `json:"statusMessage"`
	Headers       []Header `json:"headers,omitempty"`
	ElapsedTime   int64    `json:"elapsedTime"` // ms
	Size          int64    `json:"size"`
	BodyPath      string   `json:"bodyPath"`
}

// Environment — набор переменных воркспейса. Активно не более одного.
type Environment struct {
	Base
	WorkspaceID string `json:"workspaceId"`
	Name        string `json:"name"`
	IsActive    bool   `json:"isActive"`
}

// Variable — пара key/value окружения.
//
// Если IsSecret=true, в хранилище Value всегда лежит в зашифрованном виде.
type Variable struct {
	Base
	EnvironmentID string `json:"environmentId"`
	Key           string `json:"key"`
	Value         string `json:"value"`
	IsSecret      bool   `json:"isSecret"`
}

// Settings — единственная запись настроек приложения.
type Settings struct {
	Base
	Timeout             int    `json:"timeout"` // ms
	FollowRedirects     bool   `json:"followRedirects"`
	ValidateSSL         bool   `json:"validateSSL"`
	Theme               string `json:"theme"`
	FontSize            int    `json:"fontSize"`
	MaxHistoryResponses int    `json:"maxHistoryResponses"`
}

// MockRoute — маршрут мок-сервера воркспейса.
type MockRoute struct {
	Base
	WorkspaceID string   `json:"workspaceId"`
	Method      string   `json:"method"`
	Path        string   `json:"path"`
	StatusCode  int      `json:"statusCode"`
	Headers     []Header `json:"headers,omitempty"`
	Body        string   `json:"body"`
	Enabled     bool     `json:"enabled"`
}

// OAuthToken — токены OAuth2, полученные для запроса. Не более одного на запрос.
//
// AccessToken и RefreshToken в хранилище лежат зашифрованными.
type OAuthToken struct {
	Base
	RequestID    string `json:"requestId"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	TokenType    string `json:"tokenType"`
	Scope        string `json:"scope,omitempty"`
	ExpiresAt    int64  `json:"expiresAt,omitempty"`
}
