// Package spatial назначает наблюдения единицам агрегации по вхождению точки в полигон.
//
// Правила разрешения неоднозначностей:
//   - точка на границе полигона считается внутри (семантика orb/planar);
//   - если точку содержат несколько единиц (перекрытие регионов или общая граница),
//     выбирается единица с наименьшим Order, то есть первая в порядке слоя;
//   - ячейки регулярной сетки полуоткрыты: [x0, x1) × [y0, y1), поэтому точка на
//     общей стороне принадлежит ячейке справа/сверху, а точка на правой или верхней
//     границе всей сетки не назначается.
//
// Назначение выполняется последовательно и не зависит от планировщика горутин.
package spatial
