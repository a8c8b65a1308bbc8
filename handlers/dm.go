package handlers

import (
	"net/http"

	"github.com/devchat/devchat/pkg"
	"github.com/devchat/devchat/services"
)

type DMHandler struct {
	dmService services.DMService
}

func NewDMHandler(dmService services.DMService) *DMHandler {
	return &DMHandler{dmService: dmService}
}

// ListPeers handles GET /api/dm: every other user with presence and the
// key of the private channel.
func (h *DMHandler) ListPeers(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	peers, err := h.dmService.ListPeers(r.Context(), user.ID)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, peers)
}
