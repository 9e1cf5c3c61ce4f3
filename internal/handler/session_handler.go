package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"ziggly-wallet/internal/handler/response"
	"ziggly-wallet/internal/session"
)

// SessionService session.Session 对外暴露的操作
type SessionService interface {
	Connect(ctx context.Context) (session.State, error)
	Disconnect(ctx context.Context)
	SwitchToMainnet(ctx context.Context) (session.State, error)
	Snapshot() session.State
	Status() session.Status
}

type SessionHandler struct {
	sess SessionService
}

func NewSessionHandler(sess SessionService) *SessionHandler {
	return &SessionHandler{sess: sess}
}

type sessionView struct {
	Status        session.Status `json:"status"`
	ActiveAccount string         `json:"activeAccount"`
	session.State
}

func (h *SessionHandler) view() sessionView {
	st := h.sess.Snapshot()
	active, _ := st.ActiveAccount()
	if st.Accounts == nil {
		st.Accounts = []string{}
	}
	return sessionView{Status: h.sess.Status(), ActiveAccount: active, State: st}
}

// Get 当前会话状态
// @Router /api/v1/session [get]
func (h *SessionHandler) Get(c *gin.Context) {
	response.Success(c, h.view())
}

// Connect 连接钱包, 必要时切到主网
// @Router /api/v1/session/connect [post]
func (h *SessionHandler) Connect(c *gin.Context) {
	if _, err := h.sess.Connect(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, h.view())
}

// @Router /api/v1/session/disconnect [post]
func (h *SessionHandler) Disconnect(c *gin.Context) {
	h.sess.Disconnect(c.Request.Context())
	response.Success(c, h.view())
}

// @Router /api/v1/session/switch-network [post]
func (h *SessionHandler) SwitchNetwork(c *gin.Context) {
	if _, err := h.sess.SwitchToMainnet(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, h.view())
}
