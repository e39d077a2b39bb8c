package model

import "time"

// ChannelMember 频道成员及其权限。一个频道对应一个实时房间
type ChannelMember struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	ChannelID string    `json:"channelId" gorm:"size:64;uniqueIndex:idx_channel_user;not null"`
	UserID    string    `json:"userId" gorm:"size:64;uniqueIndex:idx_channel_user;index;not null"`
	CanRead   bool      `json:"canRead" gorm:"default:true"`
	CanWrite  bool      `json:"canWrite" gorm:"default:true"`
	CanManage bool      `json:"canManage" gorm:"default:false"`
	JoinedAt  time.Time `json:"joinedAt" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (ChannelMember) TableName() string {
	return "channel_members"
}
