package service

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrShopNotFound        = errors.New("商家不存在")
	ErrProductNotFound     = errors.New("商品不存在")
	ErrDescriptionTooShort = errors.New("描述过短")
	ErrNoImages            = errors.New("没有提供图片")
	ErrInvalidJSON         = errors.New("JSON 格式不正确")
	ErrInvalidArgument     = errors.New("参数错误")
)

// isNotFound 统一判断 gorm 未找到
func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// isDuplicate 唯一约束冲突（InitDB/OpenSQLite 开启了 TranslateError）
func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
