package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/damilarekoiki/project-management/internal/model"
	"github.com/damilarekoiki/project-management/internal/pkg/apperr"
)

// searchLimit 用户搜索接口最多返回的条数。
const searchLimit = 4

// UserStore 负责用户的读取。用户由外部身份服务创建，本服务只读。
type UserStore struct {
	db *gorm.DB
}

// NewUserStore 创建用户存储。
func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// FindUser 按 id 查找用户。
func (s *UserStore) FindUser(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SearchByName 按用户名子串搜索，最多返回 searchLimit 条。
func (s *UserStore) SearchByName(ctx context.Context, query string) ([]model.User, error) {
	var users []model.User
	err := s.db.WithContext(ctx).Model(&model.User{}).
		Select("id", "name").
		Where("name LIKE ?", "%"+query+"%").
		Limit(searchLimit).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []model.User{}
	}
	return users, nil
}
