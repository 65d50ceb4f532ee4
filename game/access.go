package game

// AuthorizeReveal decides whether player may reveal field. Only guessers may
// reveal. The player's team, the room's current team and the field's colour
// are not consulted.
func AuthorizeReveal(player *Player, field *Field) error {
	if player == nil || field == nil {
		return ErrNotFound
	}
	if player.Role != RoleGuesser {
		return ErrForbidden
	}
	return nil
}

// MaskBoard returns the board as viewer may see it. Showers of the room see
// every category; anyone else only sees categories of revealed fields.
func MaskBoard(fields []*Field, viewer *Player) []*Field {
	if viewer != nil && viewer.Role == RoleShower && len(fields) > 0 && viewer.RoomID == fields[0].RoomID {
		return fields
	}
	masked := make([]*Field, len(fields))
	for i, f := range fields {
		c := *f
		if !c.IsUsed {
			c.Team = ""
		}
		masked[i] = &c
	}
	return masked
}
