package domains

import (
	"spbu/anomsync/internal/domains/common"
	"spbu/anomsync/internal/domains/handlers/anomaly/analyze"
	"spbu/anomsync/internal/model"
)

// HandlerMap 路由表（ActionType → Handler 映射）
var HandlerMap = map[string]common.HandlerServProc{
	model.ActionTypeAnalyze: analyze.NewAnalyzeHandler,

	// 未来扩展示例：
	// "anomaly_recheck": recheck.NewRecheckHandler,
}
