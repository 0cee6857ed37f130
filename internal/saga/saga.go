// Package saga 以显式的有序步骤列表执行跨存储的操作。
// 每个步骤可声明一个补偿动作；某一步失败时，已完成步骤的补偿按逆序执行。
package saga

import (
	"context"
	"fmt"

	"classdoc-go/pkg/log"
)

// Step 是 saga 中的一步。Compensate 可以为 nil，表示该步无需补偿。
type Step struct {
	Name       string
	Do         func(ctx context.Context) error
	Compensate func(ctx context.Context) error
	// When 为 nil 时总是执行；返回 false 时跳过该步（也不会补偿）。
	When func() bool
}

// Saga 保存步骤列表，Run 之前可以多次 Add。
type Saga struct {
	name  string
	steps []Step
}

// New 创建一个新的 saga，name 只用于日志。
func New(name string) *Saga {
	return &Saga{name: name}
}

// Add 追加一个步骤，返回自身以便链式调用。
func (s *Saga) Add(step Step) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// Steps 返回已声明的步骤名称，按执行顺序排列。
func (s *Saga) Steps() []string {
	names := make([]string, 0, len(s.steps))
	for _, st := range s.steps {
		names = append(names, st.Name)
	}
	return names
}

// Result 是一次执行的结果：要么全部成功，要么记录失败的步骤与原因。
// 补偿自身的失败单独记录，不会覆盖 Err。
type Result struct {
	Completed        []string
	Skipped          []string
	FailedStep       string
	Err              error
	Compensated      []string
	CompensationErrs map[string]error
}

// OK 表示所有步骤都执行成功。
func (r *Result) OK() bool {
	return r.Err == nil
}

// Run 按顺序执行步骤。
// 补偿使用脱离取消信号的上下文，调用方断开后补偿仍然执行；补偿失败只记录日志，不重试。
func (s *Saga) Run(ctx context.Context) *Result {
	res := &Result{}
	done := make([]Step, 0, len(s.steps))

	for _, st := range s.steps {
		if st.When != nil && !st.When() {
			res.Skipped = append(res.Skipped, st.Name)
			continue
		}
		if err := st.Do(ctx); err != nil {
			res.FailedStep = st.Name
			res.Err = err
			log.Warnw(fmt.Sprintf("[Saga.%s] 步骤失败，开始补偿", s.name), "step", st.Name, "error", err)
			s.compensate(context.WithoutCancel(ctx), done, res)
			return res
		}
		res.Completed = append(res.Completed, st.Name)
		done = append(done, st)
	}
	return res
}

func (s *Saga) compensate(ctx context.Context, done []Step, res *Result) {
	for i := len(done) - 1; i >= 0; i-- {
		st := done[i]
		if st.Compensate == nil {
			continue
		}
		if err := st.Compensate(ctx); err != nil {
			if res.CompensationErrs == nil {
				res.CompensationErrs = make(map[string]error)
			}
			res.CompensationErrs[st.Name] = err
			log.Errorw(fmt.Sprintf("[Saga.%s] 补偿失败", s.name), "step", st.Name, "error", err)
			continue
		}
		res.Compensated = append(res.Compensated, st.Name)
	}
}
