package api

import (
	"errors"
	"net/http"
	"time"

	"alcyxob/fitness-sync/internal/domain"
	"alcyxob/fitness-sync/internal/store"
	syncengine "alcyxob/fitness-sync/internal/sync"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Handler serves the loopback API the UI layer binds to. It writes
// through the same store operations the sync engine uses, which is what
// makes Dirty tracking automatic: any edit landing here is queued for
// the next push without further ceremony.
type Handler struct {
	stores     syncengine.Stores
	reconciler *syncengine.LinkReconciler
	scheduler  *syncengine.Scheduler
	engine     *syncengine.Engine
	log        zerolog.Logger
}

// NewHandler creates the API handler.
func NewHandler(stores syncengine.Stores, reconciler *syncengine.LinkReconciler, scheduler *syncengine.Scheduler, engine *syncengine.Engine, logger zerolog.Logger) *Handler {
	return &Handler{
		stores:     stores,
		reconciler: reconciler,
		scheduler:  scheduler,
		engine:     engine,
		log:        logger.With().Str("component", "api").Logger(),
	}
}

func abortWithError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"error": message})
}

// abortStoreError maps storage failures onto HTTP statuses: missing
// records are 404, constraint violations 409, everything else 500.
func (h *Handler) abortStoreError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		abortWithError(c, http.StatusNotFound, "record not found")
		return
	}
	var serr *store.StorageError
	if errors.As(err, &serr) && serr.Kind == store.KindConstraint {
		abortWithError(c, http.StatusConflict, serr.Error())
		return
	}
	h.log.Error().Err(err).Str("path", c.FullPath()).Msg("storage operation failed")
	abortWithError(c, http.StatusInternalServerError, "storage operation failed")
}

// --- Exercises ---

// ExerciseRequest is the write DTO for exercises.
type ExerciseRequest struct {
	Name     string `json:"name" binding:"required"`
	Category string `json:"category"`
	Notes    string `json:"notes"`
}

func (h *Handler) listExercises(c *gin.Context) {
	exercises, err := h.stores.Exercises.ListActive(c.Request.Context())
	if err != nil {
		h.abortStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, exercises)
}

func (h *Handler) createExercise(c *gin.Context) {
	var req ExerciseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	exercise := domain.NewExercise(req.Name, req.Category, req.Notes)
	if err := h.stores.Exercises.Upsert(c.Request.Context(), exercise); err != nil {
		h.abortStoreError(c, err)
		return
	}
	c.JSON(http.StatusCreated, exercise)
}

func (h *Handler) updateExercise(c *gin.Context) {
	var req ExerciseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	ctx := c.Request.Context()
	exercise, err := h.stores.Exercises.Get(ctx, c.Param("localId"))
	if err != nil {
		h.abortStoreError(c, err)
		return
	}
	exercise.Name, exercise.Category, exercise.Notes = req.Name, req.Category, req.Notes
	if err := h.stores.Exercises.Upsert(ctx, exercise); err != nil {
		h.abortStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, exercise)
}

func (h *Handler) deleteExercise(c *gin.Context) {
	if err := h.stores.Exercises.SoftDelete(c.Request.Context(), c.Param("localId")); err != nil {
		h.abortStoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Workouts ---

// WorkoutRequest is the write DTO for workouts.
type WorkoutRequest struct {
	Title string `json:"title" binding:"required"`
	Notes string `json:"notes"`
}

func (h *Handler) listWorkouts(c *gin.Context) {
	workouts, err := h.stores.Workouts.ListActive(c.Request.Context())
	if err != nil {
		h.abortStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, workouts)
}

func (h *Handler) createWorkout(c *gin.Context) {
	var req WorkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	workout := domain.NewWorkout(req.Title, req.Notes)
	if err := h.stores.Workouts.Upsert(c.Request.Context(), workout); err != nil {
		h.abortStoreError(c, err)
		return
	}
	c.JSON(http.StatusCreated, workout)
}

func (h *Handler) updateWorkout(c *gin.Context) {
	var req WorkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	ctx := c.Request.Context()
	workout, err := h.stores.Workouts.Get(ctx, c.Param("localId"))
	if err != nil {
		h.abortStoreError(c, err)
		return
	}
	workout.Title, workout.Notes = req.Title, req.Notes
	if err := h.stores.Workouts.Upsert(ctx, workout); err != nil {
		h.abortStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, workout)
}

func (h *Handler) deleteWorkout(c *gin.Context) {
	if err := h.stores.Workouts.SoftDelete(c.Request.Context(), c.Param("localId")); err != nil {
		h.abortStoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Workout/exercise links ---

func (h *Handler) listWorkoutExercises(c *gin.Context) {
	ctx := c.Request.Context()
	workoutID := c.Param("localId")
	if _, err := h.stores.Workouts.Get(ctx, workoutID); err != nil {
		h.abortStoreError(c, err)
		return
	}
	links, err := h.stores.Links.ListByWorkout(ctx, workoutID, false)
	if err != nil {
		h.abortStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, links)
}

// setWorkoutExercises replaces the workout's exercise membership with
// the posted target set, through the link reconciler.
func (h *Handler) setWorkoutExercises(c *gin.Context) {
	var targets []domain.LinkTarget
	if err := c.ShouldBindJSON(&targets); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	ctx := c.Request.Context()
	workoutID := c.Param("localId")
	if _, err := h.stores.Workouts.Get(ctx, workoutID); err != nil {
		h.abortStoreError(c, err)
		return
	}
	if err := h.reconciler.Reconcile(ctx, workoutID, targets); err != nil {
		h.abortStoreError(c, err)
		return
	}
	links, err := h.stores.Links.ListByWorkout(ctx, workoutID, false)
	if err != nil {
		h.abortStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, links)
}

// --- Sessions and sets ---

// SessionRequest is the write DTO for sessions.
type SessionRequest struct {
	Title          string    `json:"title" binding:"required"`
	Date           time.Time `json:"date" binding:"required"`
	Description    string    `json:"description"`
	WorkoutLocalID *string   `json:"workoutLocalId"`
}

func (h *Handler) listSessions(c *gin.Context) {
	sessions, err := h.stores.Sessions.ListActive(c.Request.Context())
	if err != nil {
		h.abortStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessions)
}

func (h *Handler) createSession(c *gin.Context) {
	var req SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	ctx := c.Request.Context()
	if req.WorkoutLocalID != nil {
		if _, err := h.stores.Workouts.Get(ctx, *req.WorkoutLocalID); err != nil {
			h.abortStoreError(c, err)
			return
		}
	}
	session := domain.NewSession(req.Title, req.Date, req.Description, req.WorkoutLocalID)
	if err := h.stores.Sessions.Upsert(ctx, session); err != nil {
		h.abortStoreError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (h *Handler) deleteSession(c *gin.Context) {
	if err := h.stores.Sessions.SoftDelete(c.Request.Context(), c.Param("localId")); err != nil {
		h.abortStoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SessionSetRequest is the write DTO for logged sets.
type SessionSetRequest struct {
	ExerciseLocalID string   `json:"exerciseLocalId" binding:"required"`
	SetNumber       int      `json:"setNumber" binding:"required"`
	Reps            int      `json:"reps"`
	Weight          float64  `json:"weight"`
	RPE             *float64 `json:"rpe"`
	Note            string   `json:"note"`
}

func (h *Handler) createSessionSet(c *gin.Context) {
	var req SessionSetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	ctx := c.Request.Context()
	sessionID := c.Param("localId")
	if _, err := h.stores.Sessions.Get(ctx, sessionID); err != nil {
		h.abortStoreError(c, err)
		return
	}
	if _, err := h.stores.Exercises.Get(ctx, req.ExerciseLocalID); err != nil {
		h.abortStoreError(c, err)
		return
	}
	set := domain.NewSessionSet(sessionID, req.ExerciseLocalID, req.SetNumber, req.Reps, req.Weight)
	set.RPE = req.RPE
	set.Note = req.Note
	if err := h.stores.Sets.Upsert(ctx, set); err != nil {
		h.abortStoreError(c, err)
		return
	}
	c.JSON(http.StatusCreated, set)
}

func (h *Handler) deleteSessionSet(c *gin.Context) {
	if err := h.stores.Sets.SoftDelete(c.Request.Context(), c.Param("localId")); err != nil {
		h.abortStoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Sync ---

// triggerSync is the user-initiated refresh path: no debounce, straight
// at the gate. A refresh while a run is in flight just reports that; the
// UI reads whatever local state is currently merged either way.
func (h *Handler) triggerSync(c *gin.Context) {
	if h.scheduler.SyncNow() {
		c.JSON(http.StatusAccepted, gin.H{"started": true})
		return
	}
	if h.scheduler.InFlight() {
		c.JSON(http.StatusOK, gin.H{"started": false, "reason": "sync already in flight"})
		return
	}
	// Generic indicator only; details stay in the logs.
	abortWithError(c, http.StatusServiceUnavailable, "sync failed")
}

func (h *Handler) syncStatus(c *gin.Context) {
	status := h.engine.Status()
	c.JSON(http.StatusOK, gin.H{
		"inFlight":  h.scheduler.InFlight(),
		"lastRunAt": status.LastRunAt,
		"lastError": status.LastError,
	})
}
