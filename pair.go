package duet

import (
	"github.com/yaoapp/duet/channel"
	"golang.org/x/sync/errgroup"
)

// NewPair create both threads connected by an in-memory pipe and start them
func NewPair(option Option) (*Background, *MainThread, error) {
	option.Validate()
	logic, ui := channel.Pipe(option.Name)

	background := NewBackground(option, logic)
	main, err := NewMainThread(option, ui)
	if err != nil {
		background.Close()
		return nil, nil, err
	}

	var g errgroup.Group
	g.Go(background.Start)
	g.Go(main.Start)
	if err := g.Wait(); err != nil {
		background.Close()
		main.Close()
		return nil, nil, err
	}
	return background, main, nil
}
