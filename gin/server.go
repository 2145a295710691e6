package gin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bobinette/coursedocs/log"
)

// Server wraps a gin engine so that services can register plain
// http.Handler values, typically go-kit transports.
type Server struct {
	addr   string
	router *gin.Engine
}

func New(addr, env string, logger log.Logger) *Server {
	if env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger.WithField("component", "http")))
	router.Use(cors())

	// Unknown route
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	// Ping
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": "ok"})
	})

	return &Server{
		addr:   addr,
		router: router,
	}
}

func (s *Server) RegisterHandler(path, method string, h http.Handler) {
	s.router.Handle(method, path, gin.WrapH(h))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start blocks until the server stops.
func (s *Server) Start() error {
	return s.router.Run(s.addr)
}
