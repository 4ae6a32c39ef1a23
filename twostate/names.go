package twostate

// ChannelNames holds the resolved control-system channel names for one
// two-state device, expanded from the device prefix and the per-state
// channel UIDs according to the facility EPS naming convention:
//
//	command:  {prefix}Cmd:{uid}-Cmd
//	readback: {prefix}Pos-Sts
//	fail:     {prefix}Sts:Fail{uid}-Sts
//	enable:   {prefix}Enbl-Sts
type ChannelNames struct {
	// Command1 triggers motion toward the first state when activated.
	Command1 string
	// Command2 triggers motion toward the second state when activated.
	Command2 string
	// Readback reports the current stable position of the device.
	Readback string
	// Fail1 indicates the last attempt to reach the first state failed.
	Fail1 string
	// Fail2 indicates the last attempt to reach the second state failed.
	Fail2 string
	// Enable reports whether the facility currently permits moves.
	Enable string
}

// buildChannelNames expands the device prefix and per-state UIDs into the
// full set of channel names.
func buildChannelNames(prefix, uid1, uid2 string) ChannelNames {
	return ChannelNames{
		Command1: prefix + "Cmd:" + uid1 + "-Cmd",
		Command2: prefix + "Cmd:" + uid2 + "-Cmd",
		Readback: prefix + "Pos-Sts",
		Fail1:    prefix + "Sts:Fail" + uid1 + "-Sts",
		Fail2:    prefix + "Sts:Fail" + uid2 + "-Sts",
		Enable:   prefix + "Enbl-Sts",
	}
}
