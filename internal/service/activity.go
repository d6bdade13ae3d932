package service

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailveil/backend/internal/domain"
	"mailveil/backend/internal/storage"
)

// activityFeedLimit 动态信息流单次返回的最大条数
const activityFeedLimit = 100

// ActivityService 负责协作动态的记录与查询。
// 动态只追加：记录失败不会让触发它的业务操作失败。
type ActivityService struct {
	store  storage.Store
	access *AccessService
	log    *zap.Logger
}

// NewActivityService 创建协作动态服务。
func NewActivityService(store storage.Store, access *AccessService, log *zap.Logger) *ActivityService {
	return &ActivityService{store: store, access: access, log: log}
}

// Record 追加一条动态。只在协作别名上调用；失败仅记日志。
func (s *ActivityService) Record(aliasID string, kind domain.ActivityKind, userID string, data map[string]string) {
	entry := &domain.ActivityEntry{
		ID:        uuid.NewString(),
		AliasID:   aliasID,
		Kind:      kind,
		UserID:    userID,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.SaveActivity(entry); err != nil {
		s.log.Warn("failed to record activity",
			zap.String("alias_id", aliasID),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
}

// Feed 返回调用者可访问的协作别名下最新的动态，按时间倒序。
// 个人别名不产生动态，直接跳过。
func (s *ActivityService) Feed(userID string) ([]domain.ActivityEntry, error) {
	aliases, err := s.access.ResolveAccessibleAliases(userID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(aliases))
	for _, a := range aliases {
		if a.IsCollaborative {
			ids = append(ids, a.ID)
		}
	}
	if len(ids) == 0 {
		return []domain.ActivityEntry{}, nil
	}

	return s.store.ListActivitiesByAliasIDs(ids, activityFeedLimit)
}
