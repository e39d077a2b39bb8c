package repository

import (
	"context"

	"StuffChat/model"

	"gorm.io/gorm"
)

// ChannelRepository 频道成员数据访问接口
type ChannelRepository interface {
	IsMember(ctx context.Context, channelID, userID string) (bool, error)
	CanAccess(ctx context.Context, channelID, userID string) (bool, error)
	ListMemberIDs(ctx context.Context, channelID string) ([]string, error)
	AddMember(ctx context.Context, member *model.ChannelMember) error
	RemoveMember(ctx context.Context, channelID, userID string) error
}

// gormChannelRepository GORM 实现
type gormChannelRepository struct {
	db *gorm.DB
}

// NewGormChannelRepository 创建 GORM 频道仓库
func NewGormChannelRepository(db *gorm.DB) ChannelRepository {
	return &gormChannelRepository{db: db}
}

func (r *gormChannelRepository) memberQuery(ctx context.Context, channelID, userID string) *gorm.DB {
	return r.db.WithContext(ctx).Model(&model.ChannelMember{}).
		Where("channel_id = ? AND user_id = ?", channelID, userID)
}

// IsMember 是否为频道成员
func (r *gormChannelRepository) IsMember(ctx context.Context, channelID, userID string) (bool, error) {
	var count int64
	err := r.memberQuery(ctx, channelID, userID).Count(&count).Error
	return count > 0, err
}

// CanAccess 成员且有读权限
func (r *gormChannelRepository) CanAccess(ctx context.Context, channelID, userID string) (bool, error) {
	var count int64
	err := r.memberQuery(ctx, channelID, userID).
		Where("can_read = ?", true).
		Count(&count).Error
	return count > 0, err
}

// ListMemberIDs 频道内所有有读权限的成员
func (r *gormChannelRepository) ListMemberIDs(ctx context.Context, channelID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&model.ChannelMember{}).
		Where("channel_id = ? AND can_read = ?", channelID, true).
		Order("user_id").
		Pluck("user_id", &ids).Error
	return ids, err
}

// AddMember 添加成员
func (r *gormChannelRepository) AddMember(ctx context.Context, member *model.ChannelMember) error {
	return r.db.WithContext(ctx).Create(member).Error
}

// RemoveMember 移除成员
func (r *gormChannelRepository) RemoveMember(ctx context.Context, channelID, userID string) error {
	return r.db.WithContext(ctx).
		Where("channel_id = ? AND user_id = ?", channelID, userID).
		Delete(&model.ChannelMember{}).Error
}
