package handler

import (
	"github.com/habitlog/internal/cache"
	"github.com/habitlog/internal/service"
	"gorm.io/gorm"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db         *gorm.DB
	habits     *service.HabitService
	logs       *cache.LogCache
	aggregator *service.Aggregator
}

// NewAPI constructs a handler set with shared services.
// 日志缓存以 gorm LogStore 作为持久层协作方；测试可以自行组装替身。
func NewAPI(gdb *gorm.DB) *API {
	habits := service.NewHabitService(gdb)
	logCache := cache.New(service.NewLogStore(gdb))

	return &API{
		db:         gdb,
		habits:     habits,
		logs:       logCache,
		aggregator: service.NewAggregator(habits, logCache),
	}
}

// DB exposes the underlying gorm instance for legacy paths.
func (a *API) DB() *gorm.DB {
	return a.db
}

// LogCache 暴露缓存实例，main 用它应用配置中的回收阈值。
func (a *API) LogCache() *cache.LogCache {
	return a.logs
}
