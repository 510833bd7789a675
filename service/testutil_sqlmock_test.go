package service

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// newMockDB 构造挂在 go-sqlmock 上的 *gorm.DB，供密钥/用户服务的测试断言 SQL。
// mysql dialector 只为了占位符风格（?）与 relay_ 系列表的线上方言一致，不会真连库。
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      conn,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		// 写操作不包默认事务，期望序列里就不用再铺 BEGIN/COMMIT
		SkipDefaultTransaction: true,
	})
	if err != nil {
		_ = conn.Close()
		t.Fatalf("gorm.Open: %v", err)
	}

	return db, mock, conn
}
