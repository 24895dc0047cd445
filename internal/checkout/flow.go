// Package checkout はチェックアウトの状態遷移と注文の確定を提供する。
//
// 状態は summary → location_selection → confirmation → completed の順に進む。
// confirmation からは location_selection へ戻ることができる。
// 現在の状態で許可されない操作はINVALID_TRANSITIONとなり、状態は変わらない。
package checkout

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/hitoshi/storefront/internal/model"
)

// State はチェックアウトの状態。
type State string

const (
	StateSummary           State = "summary"
	StateLocationSelection State = "location_selection"
	StateConfirmation      State = "confirmation"
	StateCompleted         State = "completed"
)

// 状態遷移を引き起こす操作名。
const (
	actionContinue       = "continue"
	actionSelectLocation = "select_location"
	actionChangeLocation = "change_location"
	actionConfirm        = "confirm"
)

// Flow は1回のチェックアウトの状態を保持する。
// Service.Beginで生成し、完了後は再利用しない。並行利用に対して安全。
type Flow struct {
	svc *Service

	mu       sync.Mutex
	state    State
	location *model.DeliveryAddress
	order    *model.Order
}

// State は現在の状態を返す。
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Location は選択済みの配送先を返す。未選択の場合はnilを返す。
func (f *Flow) Location() *model.DeliveryAddress {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.location == nil {
		return nil
	}
	loc := *f.location
	return &loc
}

// Order は確定した注文を返す。completed以外ではnilを返す。
func (f *Flow) Order() *model.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.order
}

// Continue は summary から location_selection へ進む。
// 未ログインの場合はNOT_LOGGED_IN、解決できる明細がない場合はEMPTY_CARTを返し、状態は変わらない。
func (f *Flow) Continue(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateSummary {
		return model.NewInvalidTransitionError(string(f.state), actionContinue)
	}

	if _, _, err := f.svc.loadCheckoutCart(ctx); err != nil {
		return err
	}

	f.transition(StateLocationSelection)
	return nil
}

// SelectLocation は配送先を記録して confirmation へ進む。
// confirmation から呼ばれた場合は配送先を置き換える。
// 座標の範囲は検査しないが、非有限値はINVALID_LOCATIONとなる。
// addressが空の場合は座標から表示用の文言を生成する。
func (f *Flow) SelectLocation(lat, lng float64, address string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateLocationSelection && f.state != StateConfirmation {
		return model.NewInvalidTransitionError(string(f.state), actionSelectLocation)
	}
	if !isFinite(lat) || !isFinite(lng) {
		return model.NewInvalidLocationError()
	}

	address = f.svc.sanitizer.Sanitize(address)
	if address == "" {
		address = FallbackAddress(lat, lng)
	}

	f.location = &model.DeliveryAddress{Lat: lat, Lng: lng, Address: address}
	f.transition(StateConfirmation)
	return nil
}

// ChangeLocation は confirmation から location_selection へ戻る。選択済みの配送先は保持する。
func (f *Flow) ChangeLocation() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateConfirmation {
		return model.NewInvalidTransitionError(string(f.state), actionChangeLocation)
	}
	f.transition(StateLocationSelection)
	return nil
}

// Confirm は注文を作成して completed へ進む。
// 注文の保存が確定点であり、保存に失敗した場合は状態を変えずにエラーを返す。
func (f *Flow) Confirm(ctx context.Context) (*model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateConfirmation {
		return nil, model.NewInvalidTransitionError(string(f.state), actionConfirm)
	}

	order, err := f.svc.placeOrder(ctx, *f.location)
	if err != nil {
		return nil, err
	}

	f.order = order
	f.transition(StateCompleted)
	return order, nil
}

func (f *Flow) transition(to State) {
	from := f.state
	f.state = to
	if f.svc.metrics != nil {
		f.svc.metrics.RecordCheckoutTransition(string(from), string(to))
	}
}

// FallbackAddress は住所が得られない場合の表示用文言を返す。
func FallbackAddress(lat, lng float64) string {
	return fmt.Sprintf("Ubicación seleccionada: %.4f, %.4f", lat, lng)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
