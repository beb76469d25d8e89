package sale

import (
	"fmt"
	"math/rand"
	"time"
)

// GenerateSaleNo 生成销售单号
// 格式:SAL + 时间戳(秒) + 6位随机数,全局唯一且时间有序
// 示例:SAL1699248000123456
//
// 生产环境推荐雪花算法(分布式唯一ID)
func GenerateSaleNo() string {
	timestamp := time.Now().Unix()
	random := rand.Intn(1000000)
	return fmt.Sprintf("SAL%d%06d", timestamp, random)
}
