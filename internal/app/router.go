package app

import (
	"radiography_exam/docs"
	"radiography_exam/internal/config"
	"radiography_exam/internal/middleware"
	"radiography_exam/internal/model"
	"radiography_exam/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, s *services, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())
	router.GET("/health", c.health.HealthCheck)

	// 1. 浏览器会话路由（cookie 会话，可匿名作答）
	a.registerSessionRoutes(router, c, s, cfg)

	// 2. 公共 API
	a.registerPublicRoutes(router, c)

	// 3. 管理员接口
	a.registerAdminRoutes(router, c, s, cfg)
}

func (a *App) registerSessionRoutes(router *gin.Engine, c *controllers, s *services, cfg *config.Config) {
	web := router.Group("/")
	web.Use(middleware.SessionMiddleware(cfg.Session), middleware.LoadSessionUser(s.sessions))
	{
		web.POST("/login", c.auth.Login)
		web.POST("/logout", c.auth.Logout)
		web.GET("/test-center", c.auth.TestCenter)

		exam := web.Group("/")
		exam.Use(middleware.ActivityMiddleware(s.user))
		{
			exam.GET("/start-test/:testId", c.exam.StartTest)
			exam.POST("/submit-question", c.exam.SubmitQuestion)
			exam.POST("/submit-question/:testId/:qid", c.exam.SubmitQuestionByPath)
			exam.GET("/submit-test-final/:testId", c.exam.FinalizeTest)
			exam.GET("/user/performance/:testId", c.exam.Performance)
			exam.POST("/api/test-progress/answer", c.exam.SaveAnswer)
			exam.POST("/api/test-progress/exit", c.exam.ExitTest)
		}

		member := web.Group("/")
		member.Use(middleware.RequireLogin())
		{
			member.GET("/user/results", c.result.MyResults)
			member.GET("/ws/presence", c.presence.HandleWS)
		}
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.POST("/users", c.auth.Register)
		public.POST("/login", c.auth.Token)
		public.GET("/user-count", c.auth.UserCount)
	}
}

func (a *App) registerAdminRoutes(router *gin.Engine, c *controllers, s *services, cfg *config.Config) {
	admin := router.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(cfg.JWT.Secret), middleware.RoleMiddleware(model.Admin), middleware.ActivityMiddleware(s.user))
	{
		tests := admin.Group("/tests")
		{
			tests.GET("", c.test.ListTests)
			tests.POST("", c.test.CreateTest)
			tests.GET("/:id", c.test.GetTest)
			tests.PUT("/:id", c.test.UpdateTest)
			tests.DELETE("/:id", c.test.DeleteTest)
			tests.POST("/:id/toggle", c.test.ToggleTest)
			tests.POST("/:id/access", c.test.UpdateAccess)
			tests.GET("/:id/questions", c.question.ListQuestions)
			tests.POST("/:id/questions", c.question.CreateQuestion)
			tests.POST("/:id/import", c.question.ImportQuestions)
			tests.GET("/:id/question-stats", c.question.QuestionStats)
		}

		questions := admin.Group("/questions")
		{
			questions.GET("/:id", c.question.GetQuestion)
			questions.PUT("/:id", c.question.UpdateQuestion)
			questions.DELETE("/:id", c.question.DeleteQuestion)
			questions.POST("/:id/images", c.question.UploadImages)
			questions.DELETE("/:id/images/:index", c.question.RemoveImage)
		}

		users := admin.Group("/users")
		{
			users.GET("", c.user.GetUsers)
			users.POST("/:id/toggle", c.user.ToggleUser)
		}

		analytics := admin.Group("/analytics")
		{
			analytics.GET("/dashboard", c.analytics.GetDashboard)
			analytics.GET("/users", c.analytics.GetUsers)
			analytics.GET("/users/:id", c.analytics.GetUser)
			analytics.GET("/tests", c.analytics.GetTests)
			analytics.GET("/tests/:id", c.analytics.GetTest)
			analytics.GET("/tests/:id/latest", c.analytics.GetTestLatest)
			analytics.GET("/live-users", c.analytics.GetLiveUsers)
			analytics.GET("/live-progress", c.analytics.GetLiveProgress)
		}

		reset := admin.Group("/reset")
		{
			reset.POST("/results", c.analytics.ResetResults)
			reset.POST("/users", c.analytics.ResetUsers)
			reset.POST("/votes", c.analytics.ResetVotes)
		}
	}
}
