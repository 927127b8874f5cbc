package model

// AllModels 返回所有需要迁移的数据库模型对象
// 新增表时在这里添加；development 环境 AutoMigrate 使用
func AllModels() []interface{} {
	return []interface{}{
		&CreatorWallet{},
		&WalletTransaction{},
		&PaymentSplit{},
		&PayoutRequest{},
		&PayoutJob{},
		&PlatformAccount{},
		&PlatformBalance{},
		&PlatformFeeConfig{},
		&IdempotencyKey{},
		&OutboxMessage{},
	}
}
