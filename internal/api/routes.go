package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes mounts the loopback API. The daemon binds to localhost
// only; there is no auth middleware here, the bearer credential guards
// the remote side.
func SetupRoutes(router *gin.Engine, handler *Handler) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiV1 := router.Group("/api/v1")
	{
		exercises := apiV1.Group("/exercises")
		{
			exercises.GET("", handler.listExercises)
			exercises.POST("", handler.createExercise)
			exercises.PUT("/:localId", handler.updateExercise)
			exercises.DELETE("/:localId", handler.deleteExercise)
		}

		workouts := apiV1.Group("/workouts")
		{
			workouts.GET("", handler.listWorkouts)
			workouts.POST("", handler.createWorkout)
			workouts.PUT("/:localId", handler.updateWorkout)
			workouts.DELETE("/:localId", handler.deleteWorkout)
			workouts.GET("/:localId/exercises", handler.listWorkoutExercises)
			workouts.PUT("/:localId/exercises", handler.setWorkoutExercises)
		}

		sessions := apiV1.Group("/sessions")
		{
			sessions.GET("", handler.listSessions)
			sessions.POST("", handler.createSession)
			sessions.DELETE("/:localId", handler.deleteSession)
			sessions.POST("/:localId/sets", handler.createSessionSet)
		}
		apiV1.DELETE("/sets/:localId", handler.deleteSessionSet)

		syncGroup := apiV1.Group("/sync")
		{
			syncGroup.POST("", handler.triggerSync)
			syncGroup.GET("/status", handler.syncStatus)
		}
	}
}
