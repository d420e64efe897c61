package client

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"kibako/internal/canvas"
	"kibako/internal/config"
	"kibako/internal/domain"
	"kibako/internal/protocol"

	"go.uber.org/zap"
)

// duplicateShift offsets a duplicated part so it does not hide its source.
const duplicateShift = 10

var ErrThrottled = errors.New("creation throttled")

// Controller turns canvas gestures into actions. It reads the store and
// never writes parts into it; every change goes through the reducer.
type Controller struct {
	store   *Store
	reducer *Reducer
	create  *Throttle
	logger  *zap.Logger
}

func NewController(store *Store, reducer *Reducer, cfg config.ClientConfig, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		store:   store,
		reducer: reducer,
		create:  NewThrottle(time.Duration(cfg.CreateCooldownMillis) * time.Millisecond),
		logger:  logger,
	}
}

// CreatePart adds a part on top of the board.
func (c *Controller) CreatePart(ctx context.Context, part domain.Part, props []domain.PartProperty) error {
	if !c.create.Allow() {
		c.logger.Debug("create ignored during cool-down")
		return ErrThrottled
	}
	order, err := topOrder(c.store.AuthoritativeParts())
	if err != nil {
		return err
	}
	part.Order = order
	return c.reducer.Dispatch(ctx, AddPart{Part: part, Properties: props})
}

func topOrder(parts []domain.Part) (float64, error) {
	if len(parts) == 0 {
		return domain.Neighbors{}.Interpolate()
	}
	top := math.Inf(-1)
	for _, p := range parts {
		top = math.Max(top, p.Order)
	}
	return domain.After(top).Interpolate()
}

// Duplicate copies a part and its properties. The copy's order is the
// source order plus DuplicateOrderOffset; the room resolves collisions.
func (c *Controller) Duplicate(ctx context.Context, partID int64) error {
	src, ok := c.store.Part(partID)
	if !ok {
		return nil
	}
	if !c.create.Allow() {
		return ErrThrottled
	}

	dup := src.Clone()
	dup.ID = 0
	dup.Order = src.Order + domain.DuplicateOrderOffset
	dup.Position = domain.Point{X: src.Position.X + duplicateShift, Y: src.Position.Y + duplicateShift}

	props := c.store.PropertiesOf(partID)
	for i := range props {
		props[i].PartID = 0
	}
	return c.reducer.Dispatch(ctx, AddPart{Part: dup, Properties: props})
}

// Drag moves a part locally during a gesture.
func (c *Controller) Drag(partID int64, pos domain.Point) bool {
	return c.store.Drag(partID, pos)
}

// EndDrag commits the dragged position, reparenting the part when it was
// dropped into or out of a container, and flipping cards moved onto or off
// a flipping deck. A part that vanished meanwhile is ignored.
func (c *Controller) EndDrag(ctx context.Context, partID int64) error {
	pos, ok := c.store.EndDrag(partID)
	if !ok {
		return nil
	}
	res, ok := canvas.ResolveContainment(c.store.AuthoritativeParts(), partID, pos)
	if !ok {
		return nil
	}

	patch := &domain.PartPatch{Position: &pos}
	if res.ParentChanged {
		if res.ParentID != nil {
			patch.ParentID = domain.SetInt64(*res.ParentID)
		} else {
			patch.ParentID = domain.NullInt64()
		}
	}
	if err := c.reducer.Dispatch(ctx, UpdatePart{PartID: partID, Patch: patch}); err != nil {
		return err
	}
	if res.Flip != nil {
		return c.reducer.Dispatch(ctx, FlipCard{CardID: partID, IsNextFlipped: *res.Flip})
	}
	return nil
}

// Click selects a part; additive clicks toggle it instead. Clicks on parts
// missing from the snapshot are ignored.
func (c *Controller) Click(partID int64, additive bool) {
	c.store.Selection(func(sel *canvas.Selection, parts []domain.Part) {
		if !slices.ContainsFunc(parts, func(p domain.Part) bool { return p.ID == partID }) {
			c.logger.Debug("click on vanished part ignored", zap.Int64("part_id", partID))
			return
		}
		if additive {
			sel.Toggle(partID)
			return
		}
		sel.Select(partID)
	})
}

// Marquee replaces the selection with the parts under the drag rectangle.
func (c *Controller) Marquee(drag canvas.Rect) {
	c.store.Selection(func(sel *canvas.Selection, parts []domain.Part) {
		sel.SelectMarquee(parts, drag)
	})
}

// CanAlign reports whether aligning the selection would move anything.
func (c *Controller) CanAlign(a canvas.Alignment) bool {
	return canvas.CanAlign(c.store.AuthoritativeParts(), c.store.SelectedIDs(), a)
}

// Align sends one UPDATE_PARTS with the parts that move. An aligned
// selection sends nothing.
func (c *Controller) Align(ctx context.Context, a canvas.Alignment) error {
	moves, err := canvas.Align(c.store.AuthoritativeParts(), c.store.SelectedIDs(), a)
	if err != nil {
		return err
	}
	if len(moves) == 0 {
		return nil
	}
	updates := make([]protocol.PartUpdate, 0, len(moves))
	for _, m := range moves {
		pos := m.Position
		updates = append(updates, protocol.PartUpdate{
			PartID:     m.PartID,
			UpdatePart: &domain.PartPatch{Position: &pos},
		})
	}
	return c.reducer.Dispatch(ctx, UpdateParts{Updates: updates})
}

// DeleteSelection deletes every selected part and clears the selection.
func (c *Controller) DeleteSelection(ctx context.Context) error {
	ids := c.store.SelectedIDs()
	var errs []error
	for _, id := range ids {
		if err := c.reducer.Dispatch(ctx, DeletePart{PartID: id}); err != nil {
			errs = append(errs, fmt.Errorf("delete part %d: %w", id, err))
		}
	}
	c.store.Selection(func(sel *canvas.Selection, _ []domain.Part) { sel.Clear() })
	return errors.Join(errs...)
}
