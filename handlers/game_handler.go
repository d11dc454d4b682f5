package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Epin-platforms/nadal-server/models"
	"github.com/Epin-platforms/nadal-server/services"
)

type GameHandler struct {
	gameService services.GameService
}

func NewGameHandler(gs services.GameService) *GameHandler {
	return &GameHandler{gameService: gs}
}

type scoreInput struct {
	Score1 *int `json:"score1"`
	Score2 *int `json:"score2"`
}

type courtInput struct {
	Court string `json:"court"`
}

type seedInput struct {
	SeedIndex *int `json:"seedIndex"`
}

type stateInput struct {
	State *models.TournamentState `json:"state"`
}

// StartHandler
// @Summary Провести жеребьёвку
// @Tags games
// @Description Проверяет состав, расставляет посев и переводит турнир в Drawn.
// @Produce json
// @Param id path int true "Tournament ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string "Недопустимый состав"
// @Failure 403 {object} map[string]string "Не владелец"
// @Failure 409 {object} map[string]string "Неверное состояние"
// @Security BearerAuth
// @Router /tournaments/{id}/start [post]
func (h *GameHandler) StartHandler(w http.ResponseWriter, r *http.Request) {
	callerID, ok := currentUser(w, r)
	if !ok {
		return
	}
	tournamentID, err := getIDFromURL(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.gameService.Start(r.Context(), tournamentID, callerID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// BuildTableHandler
// @Summary Создать таблицу матчей
// @Tags games
// @Produce json
// @Param id path int true "Tournament ID"
// @Success 200 {object} map[string]interface{} "matchCount"
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /tournaments/{id}/table [post]
func (h *GameHandler) BuildTableHandler(w http.ResponseWriter, r *http.Request) {
	callerID, ok := currentUser(w, r)
	if !ok {
		return
	}
	tournamentID, err := getIDFromURL(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	count, err := h.gameService.BuildTable(r.Context(), tournamentID, callerID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"matchCount": count}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// AdvanceRoundHandler
// @Summary Перевести победителей в следующий раунд
// @Tags games
// @Produce json
// @Param id path int true "Tournament ID"
// @Param round path int true "Завершённый раунд"
// @Success 200 {object} map[string]interface{} "matches следующего раунда"
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Failure 500 {object} map[string]string "Сетка повреждена"
// @Security BearerAuth
// @Router /tournaments/{id}/rounds/{round}/advance [post]
func (h *GameHandler) AdvanceRoundHandler(w http.ResponseWriter, r *http.Request) {
	callerID, ok := currentUser(w, r)
	if !ok {
		return
	}
	tournamentID, err := getIDFromURL(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	round, err := getIDFromURL(r, "round")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	matches, err := h.gameService.AdvanceRound(r.Context(), tournamentID, round, callerID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"matches": matches}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// FinalizeHandler
// @Summary Завершить турнир
// @Tags games
// @Description Пересчитывает рейтинги, сохраняет итоговые места и закрывает турнир.
// @Produce json
// @Param id path int true "Tournament ID"
// @Success 200 {object} map[string]interface{} "ranking"
// @Failure 409 {object} map[string]string "Турнир не InProgress"
// @Security BearerAuth
// @Router /tournaments/{id}/finalize [post]
func (h *GameHandler) FinalizeHandler(w http.ResponseWriter, r *http.Request) {
	callerID, ok := currentUser(w, r)
	if !ok {
		return
	}
	tournamentID, err := getIDFromURL(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	standings, err := h.gameService.Finalize(r.Context(), tournamentID, callerID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"ranking": standings}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UpdateScoreHandler
// @Summary Записать счёт матча
// @Tags games
// @Accept json
// @Produce json
// @Param id path int true "Tournament ID"
// @Param tableID path int true "Table ID"
// @Param body body scoreInput true "score1, score2"
// @Success 200 {object} map[string]interface{} "match"
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /tournaments/{id}/tables/{tableID}/score [put]
func (h *GameHandler) UpdateScoreHandler(w http.ResponseWriter, r *http.Request) {
	callerID, ok := currentUser(w, r)
	if !ok {
		return
	}
	tournamentID, err := getIDFromURL(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	tableID, err := getIDFromURL(r, "tableID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input scoreInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.Score1 == nil || input.Score2 == nil {
		badRequestResponse(w, r, errors.New("score1 and score2 are required"))
		return
	}

	match, err := h.gameService.UpdateScore(r.Context(), tournamentID, tableID, callerID, *input.Score1, *input.Score2)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UpdateCourtHandler
// @Summary Назначить корт
// @Tags games
// @Accept json
// @Produce json
// @Param id path int true "Tournament ID"
// @Param tableID path int true "Table ID"
// @Param body body courtInput true "court"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /tournaments/{id}/tables/{tableID}/court [put]
func (h *GameHandler) UpdateCourtHandler(w http.ResponseWriter, r *http.Request) {
	callerID, ok := currentUser(w, r)
	if !ok {
		return
	}
	tournamentID, err := getIDFromURL(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	tableID, err := getIDFromURL(r, "tableID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input courtInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.gameService.UpdateCourt(r.Context(), tournamentID, tableID, callerID, input.Court); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"court": strings.TrimSpace(input.Court)}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UpdateSeedHandler
// @Summary Изменить посев участника
// @Tags games
// @Accept json
// @Produce json
// @Param id path int true "Tournament ID"
// @Param uid path string true "User ID"
// @Param body body seedInput true "seedIndex"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /tournaments/{id}/participants/{uid}/seed [put]
func (h *GameHandler) UpdateSeedHandler(w http.ResponseWriter, r *http.Request) {
	callerID, ok := currentUser(w, r)
	if !ok {
		return
	}
	tournamentID, err := getIDFromURL(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	uid := chi.URLParam(r, "uid")
	if uid == "" {
		badRequestResponse(w, r, errors.New("missing uid in URL path"))
		return
	}

	var input seedInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.SeedIndex == nil {
		badRequestResponse(w, r, errors.New("seedIndex is required"))
		return
	}

	if err := h.gameService.UpdateSeed(r.Context(), tournamentID, callerID, uid, *input.SeedIndex); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"seedIndex": *input.SeedIndex}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListTablesHandler
// @Summary Список матчей турнира
// @Tags games
// @Produce json
// @Param id path int true "Tournament ID"
// @Success 200 {object} map[string]interface{} "tables"
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /tournaments/{id}/tables [get]
func (h *GameHandler) ListTablesHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tables, err := h.gameService.ListTables(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"tables": tables}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetBracketHandler
// @Summary Полная сетка турнира
// @Tags games
// @Produce json
// @Param id path int true "Tournament ID"
// @Success 200 {object} services.BracketView
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /tournaments/{id}/bracket [get]
func (h *GameHandler) GetBracketHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	view, err := h.gameService.GetBracket(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, view, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListLevelsHandler
// @Summary Изменения рейтинга по турниру
// @Tags games
// @Produce json
// @Param id path int true "Tournament ID"
// @Success 200 {object} map[string]interface{} "levels"
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /tournaments/{id}/levels [get]
func (h *GameHandler) ListLevelsHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	records, err := h.gameService.ListRatingRecords(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"levels": records}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UpdateStateHandler
// @Summary Перевести турнир в следующее состояние
// @Tags games
// @Description Только шаги без работы над сеткой (закрытие регистрации). Остальные состояния ставят start, table и finalize.
// @Accept json
// @Produce json
// @Param id path int true "Tournament ID"
// @Param input body stateInput true "Новое состояние"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string "Не владелец"
// @Failure 409 {object} map[string]string "Неверное состояние"
// @Security BearerAuth
// @Router /tournaments/{id}/state [put]
func (h *GameHandler) UpdateStateHandler(w http.ResponseWriter, r *http.Request) {
	callerID, ok := currentUser(w, r)
	if !ok {
		return
	}
	tournamentID, err := getIDFromURL(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input stateInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.State == nil {
		badRequestResponse(w, r, errors.New("state is required"))
		return
	}

	if err := h.gameService.StepState(r.Context(), tournamentID, callerID, *input.State); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"state": *input.State}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListUserGamesHandler
// @Summary Игры пользователя
// @Tags games
// @Description Турниры, в которых участвует пользователь, с числом участников. "me" означает текущего пользователя.
// @Produce json
// @Param uid path string true "User ID"
// @Success 200 {object} map[string]interface{} "games"
// @Failure 400 {object} map[string]string
// @Security BearerAuth
// @Router /users/{uid}/games [get]
func (h *GameHandler) ListUserGamesHandler(w http.ResponseWriter, r *http.Request) {
	callerID, ok := currentUser(w, r)
	if !ok {
		return
	}
	uid := chi.URLParam(r, "uid")
	if uid == "me" {
		uid = callerID
	}

	games, err := h.gameService.ListUserGames(r.Context(), uid)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"games": games}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
