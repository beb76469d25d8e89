// Package saga 实现通用的Saga分布式事务框架
//
// Saga模式核心思想：
// 1. 将长事务拆分为多个本地短事务
// 2. 每个短事务有对应的补偿操作
// 3. 如果某步失败，按逆序执行已完成步骤的补偿操作
//
// 教学要点：
// - Saga换来的是最终一致性而非强一致性,补偿期间数据有中间状态
// - 补偿操作必须幂等(靠引用号/幂等键),因为补偿本身会被重试
// - 补偿重试用尽仍失败时必须大声记录并告警,这代表数据已经不一致
package saga

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/xiebiao/retailcore/pkg/metrics"
)

// ErrCompensationIncomplete 补偿重试用尽仍未全部完成
// 此时部分资源已处于不一致状态,调用方应把整个操作升级为内部错误上报
var ErrCompensationIncomplete = errors.New("saga: compensation incomplete")

// Step 表示Saga中的一个步骤
//
// 设计要点：
// 1. Action是正向操作（如扣减库存、落库销售单）
// 2. Compensate是补偿操作（如恢复库存）
// 3. 两者都必须支持幂等（允许重试）
type Step struct {
	Name       string                          // 步骤名称（用于日志和调试）
	Action     func(ctx context.Context) error // 正向操作
	Compensate func(ctx context.Context) error // 补偿操作
}

// 补偿重试参数
// 补偿失败不能就地放弃:重试几次,间隔指数退避
const (
	compensateRetries = 3
	compensateBackoff = 100 * time.Millisecond
)

// Saga 表示一个Saga事务
type Saga struct {
	steps    []Step        // 所有步骤
	executed []Step        // 已执行的步骤（用于补偿）
	timeout  time.Duration // 整体超时时间
}

// NewSaga 创建一个新的Saga事务
//
// 示例：
//
//	sg := saga.NewSaga(30 * time.Second)
//	sg.AddStep("扣减库存", decrementStock, restoreStock)
//	sg.AddStep("落库销售单", persistSale, nil)
//	err := sg.Execute(ctx)
func NewSaga(timeout time.Duration) *Saga {
	return &Saga{
		steps:   make([]Step, 0),
		timeout: timeout,
	}
}

// AddStep 添加一个Saga步骤
//
// 设计原则：
// 1. 步骤顺序很重要（按添加顺序执行，按逆序补偿）
// 2. Action和Compensate都可以为nil（如最后一步通常无需补偿）
// 3. 补偿操作必须完全独立,只依赖自己Action的结果,不依赖后续步骤
func (s *Saga) AddStep(name string, action, compensate func(ctx context.Context) error) {
	s.steps = append(s.steps, Step{
		Name:       name,
		Action:     action,
		Compensate: compensate,
	})
}

// Execute 执行Saga事务
//
// 执行流程：
// 1. 按顺序执行每个步骤的Action
// 2. 如果某步失败，逆序执行已完成步骤的Compensate（带重试）
// 3. 返回首个失败步骤的错误
//
// 补偿使用独立的Context:触发补偿的原因可能正是ctx超时,
// 补偿不能被同一个超时连带取消
func (s *Saga) Execute(ctx context.Context) error {
	start := time.Now()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	for i, step := range s.steps {
		select {
		case <-ctx.Done():
			compErr := s.compensate(context.WithoutCancel(ctx))
			s.observe("failure", start)
			return errors.Join(fmt.Errorf("saga超时: %w", ctx.Err()), compErr)
		default:
		}

		if step.Action != nil {
			if err := step.Action(ctx); err != nil {
				compErr := s.compensate(context.WithoutCancel(ctx))
				s.observe("failure", start)
				return errors.Join(fmt.Errorf("步骤[%d:%s]执行失败: %w", i, step.Name, err), compErr)
			}
		}

		// 记录已执行的步骤（用于补偿）
		s.executed = append(s.executed, step)
	}

	s.observe("success", start)
	return nil
}

// compensate 执行补偿流程
//
// 补偿原则：
// 1. 按逆序执行已完成步骤的Compensate
//    （后执行的步骤可能依赖先执行的步骤,回滚方向必须相反）
// 2. 单个补偿失败先重试（指数退避）,重试用尽记入失败计数并大声记日志
// 3. 某步补偿失败不阻止后续步骤的补偿（尽最大努力）
//
// 返回ErrCompensationIncomplete表示至少一个补偿最终失败,数据已不一致
func (s *Saga) compensate(ctx context.Context) error {
	incomplete := false
	for i := len(s.executed) - 1; i >= 0; i-- {
		step := s.executed[i]
		if step.Compensate == nil {
			continue
		}

		if metrics.SagaCompensationsTotal != nil {
			metrics.SagaCompensationsTotal.Inc()
		}

		var err error
		for attempt := 0; attempt <= compensateRetries; attempt++ {
			if attempt > 0 {
				time.Sleep(compensateBackoff << (attempt - 1))
			}
			if err = step.Compensate(ctx); err == nil {
				break
			}
			log.Printf("[saga] 补偿失败[步骤:%s] 第%d次: %v", step.Name, attempt+1, err)
		}

		if err != nil {
			// 重试用尽:数据已不一致,必须人工对账
			log.Printf("[saga] ⚠️ 补偿最终失败[步骤:%s],需人工介入: %v", step.Name, err)
			if metrics.SagaCompensationFailuresTotal != nil {
				metrics.SagaCompensationFailuresTotal.Inc()
			}
			incomplete = true
		}
	}

	// 清空已执行列表
	s.executed = nil

	if incomplete {
		return ErrCompensationIncomplete
	}
	return nil
}

// observe 记录执行指标
func (s *Saga) observe(result string, start time.Time) {
	if metrics.SagaExecutionsTotal != nil {
		metrics.SagaExecutionsTotal.WithLabelValues(result).Inc()
	}
	if metrics.SagaExecutionDuration != nil {
		metrics.SagaExecutionDuration.Observe(time.Since(start).Seconds())
	}
}
