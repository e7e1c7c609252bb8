package session

import (
	"errors"
	"fmt"

	"github.com/jason-s-yu/loto/internal/channel"
)

// Kind classifies a user-facing session failure.
type Kind int

const (
	AllocationFailed Kind = iota + 1
	ConnectTimeout
	RoomNotFound
	NetworkFailure
	Unsupported
	LostConnection
)

func (k Kind) String() string {
	switch k {
	case AllocationFailed:
		return "allocation failed"
	case ConnectTimeout:
		return "connect timeout"
	case RoomNotFound:
		return "room not found"
	case NetworkFailure:
		return "network failure"
	case Unsupported:
		return "unsupported"
	case LostConnection:
		return "lost connection"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Failure is a transport problem surfaced to the UI. Message is shown to the user.
type Failure struct {
	Kind    Kind
	Message string
	Err     error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", f.Kind, f.Message, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error { return f.Err }

// IsKind reports whether err is a *Failure of kind k.
func IsKind(err error, k Kind) bool {
	var f *Failure
	return errors.As(err, &f) && f.Kind == k
}

func allocationFailed(err error) *Failure {
	if errors.Is(err, channel.ErrUnsupported) {
		return unsupported(err)
	}
	return &Failure{Kind: AllocationFailed, Message: "Không thể tạo phòng, vui lòng thử lại.", Err: err}
}

func connectTimeout() *Failure {
	return &Failure{
		Kind:    ConnectTimeout,
		Message: "Hết thời gian kết nối. Hãy nhờ chủ phòng gửi link hoặc mã QR có kèm cấu hình TURN.",
	}
}

func lostConnection() *Failure {
	return &Failure{Kind: LostConnection, Message: "Mất kết nối với chủ phòng."}
}

func unsupported(err error) *Failure {
	return &Failure{Kind: Unsupported, Message: "Thiết bị không hỗ trợ kết nối trực tiếp.", Err: err}
}

// classifyConnect maps a pre-open channel error to a user-facing failure.
func classifyConnect(code string, err error) *Failure {
	switch {
	case errors.Is(err, channel.ErrPeerUnavailable):
		return &Failure{
			Kind:    RoomNotFound,
			Message: fmt.Sprintf("Không tìm thấy phòng số %q. Hãy kiểm tra lại mã phòng!", code),
			Err:     err,
		}
	case errors.Is(err, channel.ErrUnsupported):
		return unsupported(err)
	}
	return &Failure{
		Kind:    NetworkFailure,
		Message: "Lỗi mạng. Hãy thử đổi mạng khác hoặc dùng máy chủ TURN.",
		Err:     err,
	}
}
